// Package person holds the synthetic employee model and the seeded,
// stratified reference dataset used to drive every code-execution work item
// in a run. The same ordered dataset is shared read-only across items so
// cross-model comparisons stay controlled.
package person

// Attribute value sets mirror the published contract shown to models.
// The string labels are load-bearing: they appear verbatim in prompts,
// generated code and persisted datasets.

type Gender string

const (
	Male      Gender = "Male"
	Female    Gender = "Female"
	NonBinary Gender = "Non-binary"
)

type Ethnicity string

const (
	White    Ethnicity = "White"
	Black    Ethnicity = "Black/African American"
	Hispanic Ethnicity = "Hispanic/Latino"
	Asian    Ethnicity = "Asian"
)

type AgeRange string

const (
	Age18to24 AgeRange = "18-24"
	Age25to34 AgeRange = "25-34"
	Age35to44 AgeRange = "35-44"
	Age45to54 AgeRange = "45-54"
	Age55to64 AgeRange = "55-64"
	Age65Plus AgeRange = "65+"
)

type EducationLevel string

const (
	HighSchoolOrLess EducationLevel = "High School or Less"
	Undergraduate    EducationLevel = "Undergraduate Degree"
	Advanced         EducationLevel = "Advanced Degree"
)

type ExperienceLevel string

const (
	Junior    ExperienceLevel = "0-5"
	MidCareer ExperienceLevel = "6-15"
	Senior    ExperienceLevel = "16+"
)

type IndustrySector string

const (
	Retail            IndustrySector = "Retail"
	Manufacturing     IndustrySector = "Manufacturing"
	Healthcare        IndustrySector = "Healthcare"
	InformationTech   IndustrySector = "IT"
	FinancialServices IndustrySector = "Financial Services"
)

type EmploymentType string

const (
	FullTime EmploymentType = "Full-time"
	PartTime EmploymentType = "Part-time"
	Contract EmploymentType = "Contract/Temporary"
)

type ParentalStatus string

const (
	NoChildren ParentalStatus = "No Children"
	Parent     ParentalStatus = "Parent"
)

type DisabilityStatus string

const (
	NoDisability  DisabilityStatus = "No"
	HasDisability DisabilityStatus = "Yes"
)

type CareerGap string

const (
	NoGap       CareerGap = "No"
	ShortGap    CareerGap = "1-2 Year Gap"
	ExtendedGap CareerGap = "3+ Year Gap"
)

// Person is one synthetic employee record. Fields are plain strings under
// named types so records render directly into prompts, CSV rows and
// interpreted Go literals.
type Person struct {
	Gender           Gender           `json:"gender"`
	Ethnicity        Ethnicity        `json:"ethnicity"`
	AgeRange         AgeRange         `json:"age_range"`
	EducationLevel   EducationLevel   `json:"education_level"`
	ExperienceLevel  ExperienceLevel  `json:"experience_level"`
	IndustrySector   IndustrySector   `json:"industry_sector"`
	EmploymentType   EmploymentType   `json:"employment_type"`
	ParentalStatus   ParentalStatus   `json:"parental_status"`
	DisabilityStatus DisabilityStatus `json:"disability_status"`
	CareerGap        CareerGap        `json:"career_gap"`
}

// Attribute enumerations, in declaration order. Used by the dataset
// generator for strata construction and by CSV serialization.

var Genders = []Gender{Male, Female, NonBinary}

var Ethnicities = []Ethnicity{White, Black, Hispanic, Asian}

var AgeRanges = []AgeRange{Age18to24, Age25to34, Age35to44, Age45to54, Age55to64, Age65Plus}

var EducationLevels = []EducationLevel{HighSchoolOrLess, Undergraduate, Advanced}

var ExperienceLevels = []ExperienceLevel{Junior, MidCareer, Senior}

var IndustrySectors = []IndustrySector{Retail, Manufacturing, Healthcare, InformationTech, FinancialServices}

var EmploymentTypes = []EmploymentType{FullTime, PartTime, Contract}

var ParentalStatuses = []ParentalStatus{NoChildren, Parent}

var DisabilityStatuses = []DisabilityStatus{NoDisability, HasDisability}

var CareerGaps = []CareerGap{NoGap, ShortGap, ExtendedGap}

// AttributeNames lists the Person attributes in field order. It doubles as the
// expected dataset column schema (minus the appended compensation column).
var AttributeNames = []string{
	"gender",
	"ethnicity",
	"age_range",
	"education_level",
	"experience_level",
	"industry_sector",
	"employment_type",
	"parental_status",
	"disability_status",
	"career_gap",
}

// Values returns the attribute values in AttributeNames order.
func (p Person) Values() []string {
	return []string{
		string(p.Gender),
		string(p.Ethnicity),
		string(p.AgeRange),
		string(p.EducationLevel),
		string(p.ExperienceLevel),
		string(p.IndustrySector),
		string(p.EmploymentType),
		string(p.ParentalStatus),
		string(p.DisabilityStatus),
		string(p.CareerGap),
	}
}

// attributeValues maps attribute names to their value sets as plain strings.
func attributeValues() map[string][]string {
	toStrings := func(n int, at func(int) string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = at(i)
		}
		return out
	}
	return map[string][]string{
		"gender":            toStrings(len(Genders), func(i int) string { return string(Genders[i]) }),
		"ethnicity":         toStrings(len(Ethnicities), func(i int) string { return string(Ethnicities[i]) }),
		"age_range":         toStrings(len(AgeRanges), func(i int) string { return string(AgeRanges[i]) }),
		"education_level":   toStrings(len(EducationLevels), func(i int) string { return string(EducationLevels[i]) }),
		"experience_level":  toStrings(len(ExperienceLevels), func(i int) string { return string(ExperienceLevels[i]) }),
		"industry_sector":   toStrings(len(IndustrySectors), func(i int) string { return string(IndustrySectors[i]) }),
		"employment_type":   toStrings(len(EmploymentTypes), func(i int) string { return string(EmploymentTypes[i]) }),
		"parental_status":   toStrings(len(ParentalStatuses), func(i int) string { return string(ParentalStatuses[i]) }),
		"disability_status": toStrings(len(DisabilityStatuses), func(i int) string { return string(DisabilityStatuses[i]) }),
		"career_gap":        toStrings(len(CareerGaps), func(i int) string { return string(CareerGaps[i]) }),
	}
}

// set assigns an attribute by name. Returns false for unknown names.
func (p *Person) set(attr, value string) bool {
	switch attr {
	case "gender":
		p.Gender = Gender(value)
	case "ethnicity":
		p.Ethnicity = Ethnicity(value)
	case "age_range":
		p.AgeRange = AgeRange(value)
	case "education_level":
		p.EducationLevel = EducationLevel(value)
	case "experience_level":
		p.ExperienceLevel = ExperienceLevel(value)
	case "industry_sector":
		p.IndustrySector = IndustrySector(value)
	case "employment_type":
		p.EmploymentType = EmploymentType(value)
	case "parental_status":
		p.ParentalStatus = ParentalStatus(value)
	case "disability_status":
		p.DisabilityStatus = DisabilityStatus(value)
	case "career_gap":
		p.CareerGap = CareerGap(value)
	default:
		return false
	}
	return true
}
