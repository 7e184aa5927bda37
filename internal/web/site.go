package web

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/keithriordan/foyer/internal/shared"
)

//go:embed data/projects.toml
var defaultProjects []byte

//go:embed data/resume.toml
var defaultResume []byte

// Project is a portfolio entry.
type Project struct {
	Name    string   `toml:"name"`
	Summary string   `toml:"summary"`
	URL     string   `toml:"url"`
	Repo    string   `toml:"repo"`
	Tags    []string `toml:"tags"`
}

// ResumeJob is one position on the resume page.
type ResumeJob struct {
	Title      string   `toml:"title"`
	Company    string   `toml:"company"`
	Location   string   `toml:"location"`
	Start      string   `toml:"start"`
	End        string   `toml:"end"`
	Highlights []string `toml:"highlights"`
}

// Site is the static content of the portfolio and resume pages.
type Site struct {
	Projects []Project   `toml:"projects"`
	Jobs     []ResumeJob `toml:"jobs"`
}

// LoadSite reads the embedded site data, replacing each file whose path is set in cfg.
func LoadSite(cfg shared.SiteConfig) (*Site, error) {
	projects, err := siteFile(cfg.ProjectsPath, defaultProjects)
	if err != nil {
		return nil, err
	}
	resume, err := siteFile(cfg.ResumePath, defaultResume)
	if err != nil {
		return nil, err
	}

	var site Site
	if err := toml.Unmarshal(projects, &site); err != nil {
		return nil, fmt.Errorf("%w: projects: %v", shared.ErrInvalidConfig, err)
	}
	if err := toml.Unmarshal(resume, &site); err != nil {
		return nil, fmt.Errorf("%w: resume: %v", shared.ErrInvalidConfig, err)
	}
	return &site, nil
}

func siteFile(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site data: %w", err)
	}
	return data, nil
}
