package person

import (
	"fmt"
	"math"
	"math/rand"

	"paylab/internal/logging"
)

// DefaultSeed keeps the reference dataset reproducible across runs unless the
// configuration overrides it.
const DefaultSeed = 42

// DefaultStrata are the protected characteristics stratified by default.
var DefaultStrata = []string{"gender", "ethnicity", "parental_status", "disability_status"}

// MinSamplesPerStratum is the recommended floor per stratum for the balance
// warning; generation still proceeds below it.
const MinSamplesPerStratum = 3

// Generator produces reference datasets with equal-allocation stratified
// sampling. The population is divided into strata over the requested
// attributes and equal samples are drawn from each, so minority groups are
// represented proportionally rather than realistically.
type Generator struct {
	seed int64
	rng  *rand.Rand
}

// NewGenerator returns a Generator seeded for reproducibility.
func NewGenerator(seed int64) *Generator {
	return &Generator{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Generate returns size Person records stratified over stratifyBy (defaults
// to DefaultStrata). When realism is set, implausible combinations such as
// age 18-24 with 16+ years of experience are rejected and resampled.
func (g *Generator) Generate(size int, stratifyBy []string, realism bool) ([]Person, error) {
	if size <= 0 {
		return nil, fmt.Errorf("dataset size must be positive, got %d", size)
	}
	if len(stratifyBy) == 0 {
		stratifyBy = DefaultStrata
	}

	values := attributeValues()
	for _, attr := range stratifyBy {
		if _, ok := values[attr]; !ok {
			return nil, fmt.Errorf("unknown stratification attribute %q", attr)
		}
	}

	strata := combinations(stratifyBy, values)
	if size < len(strata) {
		return nil, fmt.Errorf("size %d is below the number of strata %d; every stratum needs at least one sample", size, len(strata))
	}
	if size < len(strata)*MinSamplesPerStratum {
		logging.DatasetWarn("sample size %d is small for %d strata; recommend at least %d for balance",
			size, len(strata), len(strata)*MinSamplesPerStratum)
	}

	perStratum := size / len(strata)
	remainder := size % len(strata)
	logging.DatasetDebug("equal allocation: %d per stratum across %d strata, %d remainder", perStratum, len(strata), remainder)

	people := make([]Person, 0, size)
	for i, stratum := range strata {
		n := perStratum
		if i < remainder {
			n++
		}
		for j := 0; j < n; j++ {
			people = append(people, g.generateInStratum(stratum, realism))
		}
	}

	// Shuffle so downstream consumers never see clustering by stratum.
	g.rng.Shuffle(len(people), func(i, j int) {
		people[i], people[j] = people[j], people[i]
	})

	g.logBalance(people, stratifyBy)
	logging.Dataset("generated %d records across %d strata (seed=%d)", len(people), len(strata), g.seed)
	return people, nil
}

// combinations builds the cartesian product of the stratified attribute value
// sets, each element an attr->value assignment.
func combinations(attrs []string, values map[string][]string) []map[string]string {
	result := []map[string]string{{}}
	for _, attr := range attrs {
		var next []map[string]string
		for _, partial := range result {
			for _, v := range values[attr] {
				m := make(map[string]string, len(partial)+1)
				for k, pv := range partial {
					m[k] = pv
				}
				m[attr] = v
				next = append(next, m)
			}
		}
		result = next
	}
	return result
}

const maxRealismRetries = 100

func (g *Generator) generateInStratum(stratum map[string]string, realism bool) Person {
	var p Person
	for attempt := 0; attempt < maxRealismRetries; attempt++ {
		p = g.randomPerson()
		for attr, v := range stratum {
			p.set(attr, v)
		}
		if !realism || g.isRealistic(p) {
			return p
		}
	}
	logging.DatasetWarn("no realistic combination found after %d attempts for stratum %v; keeping last sample", maxRealismRetries, stratum)
	return p
}

func (g *Generator) randomPerson() Person {
	return Person{
		Gender:           Genders[g.rng.Intn(len(Genders))],
		Ethnicity:        Ethnicities[g.rng.Intn(len(Ethnicities))],
		AgeRange:         AgeRanges[g.rng.Intn(len(AgeRanges))],
		EducationLevel:   EducationLevels[g.rng.Intn(len(EducationLevels))],
		ExperienceLevel:  ExperienceLevels[g.rng.Intn(len(ExperienceLevels))],
		IndustrySector:   IndustrySectors[g.rng.Intn(len(IndustrySectors))],
		EmploymentType:   EmploymentTypes[g.rng.Intn(len(EmploymentTypes))],
		ParentalStatus:   ParentalStatuses[g.rng.Intn(len(ParentalStatuses))],
		DisabilityStatus: DisabilityStatuses[g.rng.Intn(len(DisabilityStatuses))],
		CareerGap:        CareerGaps[g.rng.Intn(len(CareerGaps))],
	}
}

// isRealistic rejects combinations that would read as synthetic noise:
// the young cannot have long careers, and advanced degrees at 18-24 are rare.
func (g *Generator) isRealistic(p Person) bool {
	maxExperience := map[AgeRange]ExperienceLevel{
		Age18to24: Junior,
		Age25to34: MidCareer,
		Age35to44: Senior,
		Age45to54: Senior,
		Age55to64: Senior,
		Age65Plus: Senior,
	}
	rank := map[ExperienceLevel]int{Junior: 0, MidCareer: 1, Senior: 2}
	if maxExp, ok := maxExperience[p.AgeRange]; ok && rank[p.ExperienceLevel] > rank[maxExp] {
		return false
	}
	if p.AgeRange == Age18to24 && p.EducationLevel == Advanced {
		// Possible but rare; admit roughly one in ten.
		if g.rng.Float64() > 0.1 {
			return false
		}
	}
	return true
}

// Distribution holds per-attribute proportions and a balance verdict.
type Distribution struct {
	Proportions map[string]float64
	CV          float64
	Balanced    bool
}

// ComputeDistribution returns the value proportions and coefficient of
// variation for every attribute of the dataset. CV below 0.1 counts as
// balanced.
func ComputeDistribution(people []Person) (map[string]Distribution, error) {
	if len(people) == 0 {
		return nil, fmt.Errorf("cannot compute distribution of empty dataset")
	}

	counts := make(map[string]map[string]int, len(AttributeNames))
	for _, attr := range AttributeNames {
		counts[attr] = make(map[string]int)
	}
	for _, p := range people {
		vals := p.Values()
		for i, attr := range AttributeNames {
			counts[attr][vals[i]]++
		}
	}

	out := make(map[string]Distribution, len(counts))
	for attr, c := range counts {
		props := make(map[string]float64, len(c))
		for v, n := range c {
			props[v] = float64(n) / float64(len(people))
		}
		cv := coefficientOfVariation(props)
		out[attr] = Distribution{Proportions: props, CV: cv, Balanced: cv < 0.1}
	}
	return out, nil
}

func coefficientOfVariation(props map[string]float64) float64 {
	if len(props) <= 1 {
		return 0
	}
	var sum float64
	for _, p := range props {
		sum += p
	}
	mean := sum / float64(len(props))
	if mean == 0 {
		return math.Inf(1)
	}
	var variance float64
	for _, p := range props {
		variance += (p - mean) * (p - mean)
	}
	variance /= float64(len(props))
	return math.Sqrt(variance) / mean
}

func (g *Generator) logBalance(people []Person, stratifyBy []string) {
	dist, err := ComputeDistribution(people)
	if err != nil {
		return
	}
	for _, attr := range stratifyBy {
		d, ok := dist[attr]
		if !ok {
			continue
		}
		minP, maxP := 1.0, 0.0
		for _, p := range d.Proportions {
			minP = math.Min(minP, p)
			maxP = math.Max(maxP, p)
		}
		logging.Dataset("stratification %s: values=%d min=%.3f max=%.3f cv=%.3f balanced=%v",
			attr, len(d.Proportions), minP, maxP, d.CV, d.Balanced)
	}
}
