package web

import (
	"fmt"
	"net/http"

	"github.com/keithriordan/foyer/internal/models"
)

type jobsData struct {
	Jobs []*models.Job
	Form JobForm
}

type jobData struct {
	Job      *models.Job
	ImageURL string
}

func (a *App) jobsIndex(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Jobs.List()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.render(w, r, http.StatusOK, "jobs", view{Title: "Job Wizard", Data: jobsData{Jobs: jobs}})
}

func (a *App) jobForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "job_form", view{Title: "Add a job", Data: jobsData{}})
}

func (a *App) addJob(w http.ResponseWriter, r *http.Request) {
	form := decodeJobForm(r)
	if errs := form.Validate(); len(errs) > 0 {
		a.render(w, r, http.StatusBadRequest, "job_form", view{Title: "Add a job", Errors: errs, Data: jobsData{Form: form}})
		return
	}

	job, err := a.Jobs.Create(r.Context(), form.Title, form.CompanyName, form.ListingURL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.redirect(w, r, fmt.Sprintf("/jobwizard/%d", job.ID))
}

func (a *App) jobDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	job, err := a.Jobs.Get(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.render(w, r, http.StatusOK, "job", view{Title: job.Title, Data: jobData{Job: job, ImageURL: a.Jobs.ImageURL(job)}})
}
