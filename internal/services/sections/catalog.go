// -----------------------------------------------------------------------
// Section catalog - Report types, their ordered sections and writing rules
// -----------------------------------------------------------------------

package sections

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	ReportFeasibility        = "feasibility-report"
	ReportTechnicalScope     = "technical-scope"
	ReportCommercialProposal = "commercial-proposal"
)

// FallbackRules applies to titles the catalog does not define
const FallbackRules = "This section is not defined in the catalog. " +
	"Write only content explicitly relevant to the section title. " +
	"Use only facts present in the provided context. " +
	"Do not introduce recommendations, solutions, timelines, or content from other sections."

// FallbackKey names a section whose title yields no usable key
const FallbackKey = "section"

// Section is one catalog entry
type Section struct {
	Title string `toml:"title"`
	Key   string `toml:"key"`
	Rules string `toml:"rules"`
}

// Report lists the ordered sections of a report type
type Report struct {
	Type     string    `toml:"type"`
	Sections []Section `toml:"sections"`
}

type catalogFile struct {
	Reports []Report `toml:"reports"`
}

// Catalog maps report types to their sections
type Catalog struct {
	reports map[string][]Section
}

// DefaultCatalog returns the built-in report definitions
func DefaultCatalog() *Catalog {
	c := &Catalog{reports: make(map[string][]Section)}
	for _, r := range builtinReports() {
		c.reports[r.Type] = r.Sections
	}
	return c
}

// LoadCatalog returns the built-in catalog with report types from path replacing
// or extending it. An empty path returns the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read section catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse section catalog %s: %w", path, err)
	}

	for _, r := range file.Reports {
		if strings.TrimSpace(r.Type) == "" {
			return nil, fmt.Errorf("section catalog %s: report without type", path)
		}
		sections := make([]Section, 0, len(r.Sections))
		for _, s := range r.Sections {
			if strings.TrimSpace(s.Title) == "" {
				return nil, fmt.Errorf("section catalog %s: %s has a section without title", path, r.Type)
			}
			key := s.Key
			if key == "" {
				key = s.Title
			}
			if s.Key = KeyFromTitle(key); s.Key == "" {
				return nil, fmt.Errorf("section catalog %s: %s section %q has no usable key", path, r.Type, s.Title)
			}
			sections = append(sections, s)
		}
		c.reports[r.Type] = sections
	}
	return c, nil
}

// HasReportType reports whether t is a known report type
func (c *Catalog) HasReportType(t string) bool {
	_, ok := c.reports[t]
	return ok
}

// ReportTypes returns the known report types sorted
func (c *Catalog) ReportTypes() []string {
	types := make([]string, 0, len(c.reports))
	for t := range c.reports {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Sections returns the ordered sections of a report type
func (c *Catalog) Sections(reportType string) []Section {
	return append([]Section(nil), c.reports[reportType]...)
}

// Lookup finds a section by normalized title
func (c *Catalog) Lookup(reportType, title string) (Section, bool) {
	want := NormalizeTitle(title)
	for _, s := range c.reports[reportType] {
		if NormalizeTitle(s.Title) == want {
			return s, true
		}
	}
	return Section{}, false
}

// Resolve returns the catalog section, or a fallback entry keyed from the title
func (c *Catalog) Resolve(reportType, title string) Section {
	if s, ok := c.Lookup(reportType, title); ok {
		return s
	}
	key := KeyFromTitle(title)
	if key == "" {
		key = FallbackKey
	}
	return Section{Title: title, Key: key, Rules: FallbackRules}
}

// NormalizeTitle trims, lower-cases and treats hyphens as spaces
func NormalizeTitle(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), "-", " ")
}

var nonKeyChars = regexp.MustCompile(`[^a-z0-9]+`)

const maxKeyLen = 80

// KeyFromTitle derives a file-safe key such as "security-compliance".
// The result only contains [a-z0-9-] and may be empty.
func KeyFromTitle(title string) string {
	key := strings.Trim(nonKeyChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(key) > maxKeyLen {
		key = strings.TrimRight(key[:maxKeyLen], "-")
	}
	return key
}

func section(title, rules string) Section {
	return Section{Title: title, Key: KeyFromTitle(title), Rules: rules}
}

func builtinReports() []Report {
	return []Report{
		{
			Type: ReportFeasibility,
			Sections: []Section{
				section("Executive Summary", "Summarise the opportunity, the proposed direction and the overall feasibility verdict in a few paragraphs. No detailed costs or timelines."),
				section("Project Overview", "Describe the business context, objectives and scope boundaries of the initiative."),
				section("Business Requirements", "State the functional and business requirements the solution must satisfy. Group related needs; avoid solution design."),
				section("Technical Assessment", "Assess the technical feasibility: existing systems, data sources, integration targets and technical constraints."),
				section("Resource Assessment", "Describe the people, skills and third-party resources required and any gaps."),
				section("Cost-Benefit Analysis", "Compare expected costs (capex and opex) with quantified or qualitative benefits and ROI assumptions. State assumptions where figures are missing."),
				section("Risk Assessment", "Identify delivery, technical, data and commercial risks with likelihood, impact and mitigations."),
				section("Alternative Solutions", "Describe credible alternatives, including doing nothing, and why they were or were not preferred."),
				section("Timeline Feasibility", "Assess whether the desired timeline is achievable given phases, milestones and dependencies."),
				section("Stakeholder Analysis", "Describe stakeholder groups by role, their interests and influence. Do not name individuals."),
				section("Recommendations", "Give a clear recommendation on whether and how to proceed, with conditions."),
				section("Appendix", "Collect supporting detail such as assumptions, glossary terms and open questions that do not fit elsewhere."),
			},
		},
		{
			Type: ReportTechnicalScope,
			Sections: []Section{
				section("Executive Summary", "Summarise the problem, the proposed solution and the expected outcome for senior readers."),
				section("Company Background", "Describe the client organisation and the business context relevant to the engagement."),
				section("Current State Analysis", "Describe the current processes, systems and pain points."),
				section("Requirements Overview", "List the functional and non-functional requirements in grouped form."),
				section("Proposed Solution", "Describe the target solution, its components and how it addresses the requirements."),
				section("Technology Stack", "Describe the platforms, languages, services and tools proposed, with the reason each fits."),
				section("Integration Points", "Describe each system the solution connects to, the direction and nature of data flow, and access constraints."),
				section("Security & Compliance", "Describe security controls, data protection and relevant compliance obligations."),
				section("Implementation Timeline", "Describe phases and milestones with indicative durations. Do not invent dates."),
				section("Resource Requirements", "Describe roles and effort required from both the delivery team and the client."),
				section("Risks & Mitigations", "List the main risks with a mitigation for each; a table is appropriate."),
				section("Assumptions & Dependencies", "List the assumptions the scope relies on and external dependencies."),
			},
		},
		{
			Type:     ReportCommercialProposal,
			Sections: []Section{},
		},
	}
}
