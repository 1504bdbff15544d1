package schema

import (
	"math"
	"sync"
)

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the California School Dashboard registry. The tables are
// static, so construction cannot fail once validateBands accepts them.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := newRegistry(indicatorCatalog(), demographicCatalog())
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

// ascending builds higher-is-better bands from the four cut points between
// red/orange, orange/yellow, yellow/green and green/blue.
func ascending(lo, hi float64, cuts [4]float64) []Band {
	return []Band{
		{Lower: lo, Upper: cuts[0], Color: Red},
		{Lower: cuts[0], Upper: cuts[1], Color: Orange},
		{Lower: cuts[1], Upper: cuts[2], Color: Yellow},
		{Lower: cuts[2], Upper: cuts[3], Color: Green},
		{Lower: cuts[3], Upper: hi, Color: Blue, UpperInclusive: !math.IsInf(hi, 1)},
	}
}

// descending builds lower-is-better bands from the four cut points between
// blue/green, green/yellow, yellow/orange and orange/red.
func descending(lo, hi float64, cuts [4]float64) []Band {
	return []Band{
		{Lower: lo, Upper: cuts[0], Color: Blue},
		{Lower: cuts[0], Upper: cuts[1], Color: Green},
		{Lower: cuts[1], Upper: cuts[2], Color: Yellow},
		{Lower: cuts[2], Upper: cuts[3], Color: Orange},
		{Lower: cuts[3], Upper: hi, Color: Red, UpperInclusive: !math.IsInf(hi, 1)},
	}
}

func indicatorCatalog() []IndicatorSpec {
	return []IndicatorSpec{
		{
			ID:       ChronicAbsenteeism,
			Name:     "Chronic Absenteeism",
			Unit:     UnitPercent,
			Polarity: LowerIsBetter,
			Synonyms: []string{"chronic absenteeism", "chronically absent", "absenteeism", "attendance", "absences", "absent", "chronic"},
			Bands:    descending(0, 100, [4]float64{2.5, 5, 10, 20}),
		},
		{
			ID:       ELAPerformance,
			Name:     "English Language Arts",
			Unit:     UnitPointsFromStandard,
			Polarity: HigherIsBetter,
			Synonyms: []string{"ela", "language arts", "reading", "literacy", "ela performance"},
			Bands:    ascending(negInf, posInf, [4]float64{-70, -5, 10, 45}),
		},
		{
			ID:       MathPerformance,
			Name:     "Mathematics",
			Unit:     UnitPointsFromStandard,
			Polarity: HigherIsBetter,
			Synonyms: []string{"math", "maths", "arithmetic", "math performance"},
			Bands:    ascending(negInf, posInf, [4]float64{-95, -25, 0, 35}),
		},
		{
			ID:       SuspensionRate,
			Name:     "Suspension Rate",
			Unit:     UnitPercent,
			Polarity: LowerIsBetter,
			Synonyms: []string{"suspensions", "suspension", "suspended", "discipline", "expulsion"},
			Bands:    descending(0, 100, [4]float64{0.5, 1.5, 3, 6}),
		},
		{
			ID:       CollegeCareer,
			Name:     "College/Career",
			Unit:     UnitPercent,
			Polarity: HigherIsBetter,
			Synonyms: []string{"college and career", "college career readiness", "college readiness", "career readiness", "college", "career", "cci", "prepared"},
			Bands:    ascending(0, 100, [4]float64{10, 35, 55, 70}),
		},
		{
			ID:       GraduationRate,
			Name:     "Graduation Rate",
			Unit:     UnitPercent,
			Polarity: HigherIsBetter,
			Synonyms: []string{"grad rate", "graduation", "graduating", "graduate"},
			Bands:    ascending(0, 100, [4]float64{80, 88, 93, 95}),
		},
		{
			ID:       EnglishLearnerProgress,
			Name:     "English Learner Progress",
			Unit:     UnitPercent,
			Polarity: HigherIsBetter,
			Synonyms: []string{"english learners progress", "el progress", "elpi", "elpac", "language proficiency progress"},
			Bands:    ascending(0, 100, [4]float64{35, 45, 55, 65}),
		},
	}
}

func demographicCatalog() []DemographicGroup {
	return []DemographicGroup{
		{Code: "ALL", Name: "All Students", Synonyms: []string{"all", "all student", "every student", "everyone", "overall", "schoolwide"}},
		{Code: "AA", Name: "African American", Synonyms: []string{"black", "african-american"}},
		{Code: "AI", Name: "American Indian or Alaska Native", Synonyms: []string{"american indian", "native american", "alaska native", "indigenous"}},
		{Code: "AS", Name: "Asian", Synonyms: []string{"asian american"}},
		{Code: "FI", Name: "Filipino", Synonyms: []string{"filipino american"}},
		{Code: "HI", Name: "Hispanic", Synonyms: []string{"latino", "latina", "latinx", "hispanic or latino"}},
		{Code: "PI", Name: "Pacific Islander", Synonyms: []string{"native hawaiian", "hawaiian"}},
		{Code: "WH", Name: "White", Synonyms: []string{"caucasian"}},
		{Code: "MR", Name: "Two or More Races", Synonyms: []string{"multiracial", "multi-racial", "mixed race"}},
		{Code: "EL", Name: "English Learners", Synonyms: []string{"english learner", "english language learners", "ell", "ells"}},
		{Code: "LTEL", Name: "Long-Term English Learners", Synonyms: []string{"long term english learners", "long-term english learner", "ltel"}},
		{Code: "RFEP", Name: "Reclassified Fluent English Proficient", Synonyms: []string{"reclassified", "rfep", "reclassified students"}},
		{Code: "EO", Name: "English Only", Synonyms: []string{"english only students", "native english speakers"}},
		{Code: "SED", Name: "Socioeconomically Disadvantaged", Synonyms: []string{"low income", "low-income", "economically disadvantaged", "poverty", "poor students"}},
		{Code: "SWD", Name: "Students with Disabilities", Synonyms: []string{"special education", "special ed", "disabilities", "disabled", "swd"}},
		{Code: "FOS", Name: "Foster Youth", Synonyms: []string{"foster", "foster care"}},
		{Code: "HOM", Name: "Homeless", Synonyms: []string{"homeless youth", "housing insecure", "unhoused"}},
	}
}
