package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nfvpack/nfvpack/pkg/cli"
	"github.com/nfvpack/nfvpack/pkg/tosca"
)

const statusWidth = 48

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport writes one status line for the report followed by its issues.
func printReport(w io.Writer, r *tosca.Report) {
	fmt.Fprintf(w, "%s %s\n", cli.DotPad(r.Source, statusWidth), cli.Status(r.OK()))
	for _, i := range r.Issues {
		loc := i.File
		if loc == "" {
			loc = r.Source
		}
		if i.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, i.Line)
		}
		fmt.Fprintf(w, "  %s %s %s\n", cli.Severity(string(i.Severity)), cli.Dim("["+i.Code+"]"), loc)
		if i.Path != "" {
			fmt.Fprintf(w, "      %s: %s\n", i.Path, i.Message)
		} else {
			fmt.Fprintf(w, "      %s\n", i.Message)
		}
	}
}

// printReports prints every report and a summary, returning errInvalid when
// any report has errors.
func printReports(w io.Writer, reports []*tosca.Report) error {
	var errs, warns, unresolved int
	for _, r := range reports {
		printReport(w, r)
		errs += len(r.Errors())
		warns += len(r.Warnings())
		unresolved += len(r.Unresolved())
	}
	fmt.Fprintln(w)
	summary := fmt.Sprintf("%s checked: %s, %s, %s",
		cli.Plural(len(reports), "source"),
		cli.Plural(errs, "error"),
		cli.Plural(warns, "warning"),
		cli.Plural(unresolved, "unresolved reference"))
	if errs > 0 {
		fmt.Fprintln(w, cli.Red(summary))
		return errInvalid
	}
	fmt.Fprintln(w, cli.Green(summary))
	return nil
}

// reportsResult is the JSON document written by validate --json.
type reportsResult struct {
	Valid   bool            `json:"valid"`
	Reports []*tosca.Report `json:"reports"`
}

func printReportsJSON(reports []*tosca.Report) error {
	res := reportsResult{Valid: true, Reports: reports}
	for _, r := range reports {
		if !r.OK() {
			res.Valid = false
		}
	}
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.Valid {
		return errInvalid
	}
	return nil
}
