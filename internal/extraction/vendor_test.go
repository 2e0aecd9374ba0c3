package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ExtractVendor", func() {
	var (
		lines  []string
		vendor string
	)

	JustBeforeEach(func() {
		vendor = ExtractVendor(lines)
	})

	When("a known vendor appears near the top", func() {
		BeforeEach(func() {
			lines = []string{"Welcome", "  STARBUCKS COFFEE #123  ", "Seattle"}
		})

		It("returns the trimmed line naming it", func() {
			Expect(vendor).To(Equal("STARBUCKS COFFEE #123"))
		})
	})

	When("the name is an all-caps line after metadata", func() {
		BeforeEach(func() {
			lines = []string{"RECEIPT", "JOE'S DINER", "123 Main St"}
		})

		It("skips the metadata and returns the name", func() {
			Expect(vendor).To(Equal("JOE'S DINER"))
		})
	})

	When("no line has a business shape", func() {
		BeforeEach(func() {
			lines = []string{"#4521", "Joe's diner & grill #2"}
		})

		It("returns the first plausible line", func() {
			Expect(vendor).To(Equal("Joe's diner & grill #2"))
		})
	})

	When("only metadata lines are present", func() {
		BeforeEach(func() {
			lines = []string{"TOTAL", "RECEIPT"}
		})

		It("returns the longest lettered line", func() {
			Expect(vendor).To(Equal("RECEIPT"))
		})
	})

	When("there are no lines", func() {
		BeforeEach(func() {
			lines = nil
		})

		It("returns an empty string", func() {
			Expect(vendor).To(BeEmpty())
		})
	})
})

var _ = Describe("vendor strategies", func() {
	Describe("vendorByKeyword", func() {
		It("only inspects the first five lines", func() {
			lines := []string{"a1", "b2", "c3", "d4", "e5", "Hilton Garden"}
			Expect(vendorByKeyword(lines)).To(BeEmpty())
		})
	})

	Describe("vendorByShape", func() {
		It("accepts names with business suffixes", func() {
			Expect(vendorByShape([]string{"Acme Supply Co."})).To(Equal("Acme Supply Co."))
		})

		It("skips numeric and separator lines", func() {
			Expect(vendorByShape([]string{"(555) 123-4567", "-----"})).To(BeEmpty())
		})
	})

	Describe("vendorByFirstPlausibleLine", func() {
		It("skips street addresses", func() {
			lines := []string{"123 Main Street", "Corner Deli!"}
			Expect(vendorByFirstPlausibleLine(lines)).To(Equal("Corner Deli!"))
		})
	})

	Describe("vendorByLongestLine", func() {
		It("only inspects the first four lines", func() {
			lines := []string{"TAX", "TOTAL", "DATE", "TIME", "A much longer line"}
			Expect(vendorByLongestLine(lines)).To(Equal("TOTAL"))
		})
	})
})
