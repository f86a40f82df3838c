package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/jobrag/internal/domain/job"
	"github.com/kailas-cloud/jobrag/internal/domain/resume"
)

var (
	ingestTenant string
	jobsFile     string
	resumeURLs   []string
	resumeFiles  []string
)

var ingestJobsCmd = &cobra.Command{
	Use:   "ingest-jobs",
	Short: "Replace a tenant's job corpus from a JSON array of postings",
	Long: "Reads a JSON array of job postings (title, company, location, salary, description, link)\n" +
		"from --file or stdin and rebuilds the tenant's job corpus.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobs, err := readJobs(cmd.InOrStdin(), jobsFile)
		if err != nil {
			return err
		}
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			report, err := a.corpus.ReplaceJobs(ctx, ingestTenant, jobs)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		})
	},
}

var ingestResumeCmd = &cobra.Command{
	Use:   "ingest-resume",
	Short: "Replace a tenant's resume corpus from URLs and local files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sources, err := resumeSources(resumeURLs, resumeFiles)
		if err != nil {
			return err
		}
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			report, err := a.corpus.ReplaceResumes(ctx, ingestTenant, sources)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{ingestJobsCmd, ingestResumeCmd} {
		c.Flags().StringVarP(&ingestTenant, "tenant", "t", "", "tenant id")
		_ = c.MarkFlagRequired("tenant")
		rootCmd.AddCommand(c)
	}

	ingestJobsCmd.Flags().StringVarP(&jobsFile, "file", "f", "-", "JSON file with postings, - for stdin")
	ingestResumeCmd.Flags().StringSliceVar(&resumeURLs, "url", nil, "http(s):// or s3://bucket/key resume URL (repeatable)")
	ingestResumeCmd.Flags().StringSliceVar(&resumeFiles, "file", nil, "local resume file: pdf, docx or text (repeatable)")
}

func readJobs(stdin io.Reader, path string) ([]job.Job, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("open jobs file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var jobs []job.Job
	if err := json.NewDecoder(r).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	return jobs, nil
}

func resumeSources(urls, files []string) ([]resume.Source, error) {
	if len(urls) == 0 && len(files) == 0 {
		return nil, errors.New("at least one --url or --file is required")
	}

	sources := make([]resume.Source, 0, len(urls)+len(files))
	for _, u := range urls {
		sources = append(sources, resume.Source{URL: u})
	}
	for _, path := range files {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read resume file: %w", err)
		}
		sources = append(sources, resume.Source{Content: data, Name: filepath.Base(path)})
	}
	return sources, nil
}
