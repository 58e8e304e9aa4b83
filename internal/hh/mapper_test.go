package hh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDetail() *VacancyDetail {
	from := 200000
	to := 300000
	return &VacancyDetail{
		ID:                "123456",
		Name:              "Go Developer",
		Description:       "<p>Build crawlers.</p>",
		PublishedAt:       "2025-05-20T10:00:00+03:00",
		AlternateURL:      "https://hh.ru/vacancy/123456",
		ApplyAlternateURL: "https://hh.ru/applicant/vacancy_response?vacancyId=123456",
		Employer:          &Employer{ID: "1", Name: "Acme"},
		Area:              &Area{ID: "1", Name: "Москва"},
		Salary:            &SalaryRange{From: &from, To: &to, Currency: "RUR"},
		KeySkills:         []KeySkill{{Name: "Go"}, {Name: "PostgreSQL"}, {Name: "go"}},
		ProfessionalRoles: []ProfessionalRole{{ID: "96", Name: "Программист"}},
	}
}

func TestMapVacancy(t *testing.T) {
	p := MapVacancy(sampleDetail())

	assert.Equal(t, SourceID, p.SourceID)
	assert.Equal(t, "hh:123456", p.ExternalID)
	assert.Equal(t, "Go Developer", p.Title)
	assert.Equal(t, "Acme", p.Company)
	assert.Equal(t, "Москва", p.Location)
	assert.Equal(t, "https://hh.ru/vacancy/123456", p.URL)
	assert.Equal(t, "https://hh.ru/applicant/vacancy_response?vacancyId=123456", p.ApplyURL)
	require.NotNil(t, p.Salary)
	assert.Equal(t, 200000, *p.Salary.Min)
	assert.Equal(t, "RUR", p.Salary.Currency)
	require.NotNil(t, p.PostedAt)
	assert.Equal(t, 2025, p.PostedAt.Year())
	// skills deduped case-insensitively, role names appended
	assert.Equal(t, []string{"Go", "PostgreSQL", "Программист"}, p.Tags)
	assert.False(t, p.IsRemote)
}

func TestMapVacancyMissingEmployer(t *testing.T) {
	d := sampleDetail()
	d.Employer = nil

	p := MapVacancy(d)
	assert.Equal(t, "Unknown", p.Company)
}

func TestMapVacancyAddressCityWinsOverArea(t *testing.T) {
	d := sampleDetail()
	d.Address = &Address{City: "Санкт-Петербург"}

	p := MapVacancy(d)
	assert.Equal(t, "Санкт-Петербург", p.Location)
}

func TestMapVacancyRemoteDetection(t *testing.T) {
	d := sampleDetail()
	d.Schedule = &Schedule{ID: "remote", Name: "Удаленная работа"}
	assert.True(t, MapVacancy(d).IsRemote)

	d = sampleDetail()
	d.WorkFormat = []WorkFormat{{ID: "REMOTE", Name: "Удалённо"}}
	assert.True(t, MapVacancy(d).IsRemote)
}

func TestMapVacancySalaryFallbacks(t *testing.T) {
	from := 100000

	d := sampleDetail()
	d.Salary = nil
	d.SalaryRange = &SalaryRange{From: &from, Currency: "RUR"}
	p := MapVacancy(d)
	require.NotNil(t, p.Salary)
	assert.Equal(t, 100000, *p.Salary.Min)
	assert.Nil(t, p.Salary.Max)

	// a range with neither bound carries nothing
	d = sampleDetail()
	d.Salary = &SalaryRange{Currency: "RUR"}
	d.SalaryRange = nil
	assert.Nil(t, MapVacancy(d).Salary)

	d = sampleDetail()
	d.Salary = nil
	d.SalaryRange = nil
	assert.Nil(t, MapVacancy(d).Salary)
}

func TestMapVacancyEmptyDescriptionFallsBackToTitle(t *testing.T) {
	d := sampleDetail()
	d.Description = "<p>  </p>"

	p := MapVacancy(d)
	assert.Equal(t, "Go Developer", p.Description)
}
