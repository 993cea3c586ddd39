package report_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/report"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/trace"
)

var _ = Describe("Report", func() {
	var summary report.Summary

	BeforeEach(func() {
		config, err := cache.NewConfig(4, 4, 1)
		Expect(err).NotTo(HaveOccurred())

		summary = report.NewSummary(config, sim.Result{
			Stats:      cache.Statistics{Hits: 9, Misses: 8, Evictions: 6},
			Records:    15,
			Compulsory: 2,
		})
		summary.Trace = "yi.trace"
	})

	It("should compute the hit rate", func() {
		Expect(summary.HitRate).To(BeNumerically("~", 9.0/17.0, 1e-9))
		Expect(summary.SetBits).To(Equal(uint(4)))
		Expect(summary.Associativity).To(Equal(1))
		Expect(summary.BlockBits).To(Equal(uint(4)))
	})

	It("should leave the hit rate at zero for an empty run", func() {
		config, _ := cache.NewConfig(1, 1, 1)
		Expect(report.NewSummary(config, sim.Result{}).HitRate).To(BeZero())
	})

	It("should print the one-line summary", func() {
		buf := &bytes.Buffer{}
		Expect(report.Write(buf, report.FormatText, summary)).To(Succeed())
		Expect(buf.String()).To(Equal("hits:9 misses:8 evictions:6\n"))
	})

	It("should write JSON", func() {
		buf := &bytes.Buffer{}
		Expect(report.Write(buf, report.FormatJSON, summary)).To(Succeed())

		var decoded map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &decoded)).To(Succeed())
		Expect(decoded["hits"]).To(BeNumerically("==", 9))
		Expect(decoded["compulsory_misses"]).To(BeNumerically("==", 2))
		Expect(decoded["trace"]).To(Equal("yi.trace"))
	})

	It("should write CSV", func() {
		buf := &bytes.Buffer{}
		Expect(report.Write(buf, report.FormatCSV, summary)).To(Succeed())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[1]).To(Equal("yi.trace,4,1,4,15,9,8,6,2,0.5294"))
	})

	It("should quote trace paths in CSV", func() {
		quoted := summary
		quoted.Trace = `traces/a,b "c".trace`

		buf := &bytes.Buffer{}
		Expect(report.Write(buf, report.FormatCSV, quoted)).To(Succeed())

		rows, err := csv.NewReader(buf).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0]).To(HaveLen(10))
		Expect(rows[1]).To(HaveLen(10))
		Expect(rows[1][0]).To(Equal(`traces/a,b "c".trace`))
		Expect(rows[1][5]).To(Equal("9"))
	})

	It("should parse format names", func() {
		f, err := report.ParseFormat("JSON")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(report.FormatJSON))

		_, err = report.ParseFormat("xml")
		Expect(err).To(HaveOccurred())
	})

	It("should write the results file", func() {
		dir, err := os.MkdirTemp("", "report-test")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = os.RemoveAll(dir) }()

		path := filepath.Join(dir, ".csim_results")
		Expect(report.WriteResultsFile(path, cache.Statistics{
			Hits: 4, Misses: 5, Evictions: 3,
		})).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("4 5 3\n"))
	})
})

var _ = Describe("VerbosePrinter", func() {
	It("should print every outcome of a record", func() {
		buf := &bytes.Buffer{}
		p := report.NewVerbosePrinter(buf)

		p.OnAccess(sim.Event{
			Record:   trace.Record{Kind: trace.Load, Address: 0x10, Size: 1},
			Outcomes: []cache.Outcome{cache.Miss},
		})
		p.OnAccess(sim.Event{
			Record:   trace.Record{Kind: trace.Modify, Address: 0x20, Size: 1},
			Outcomes: []cache.Outcome{cache.MissEviction, cache.Hit},
		})
		Expect(p.Flush()).To(Succeed())

		Expect(buf.String()).To(Equal("L 10,1 miss\nM 20,1 miss eviction hit\n"))
	})
})
