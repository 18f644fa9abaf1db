package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nfvpack/nfvpack/pkg/audit"
	"github.com/nfvpack/nfvpack/pkg/catalog"
	"github.com/nfvpack/nfvpack/pkg/csar"
	"github.com/nfvpack/nfvpack/pkg/tosca"
	"github.com/nfvpack/nfvpack/pkg/util"
)

// ValidationResponse is the body of a validation answer.
type ValidationResponse struct {
	Valid    bool          `json:"valid"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
	Report   *tosca.Report `json:"report"`
}

// OnboardResponse is the body of an onboarding answer.
type OnboardResponse struct {
	Created    bool                `json:"created"`
	Descriptor *catalog.Descriptor `json:"descriptor,omitempty"`
	Report     *tosca.Report       `json:"report,omitempty"`
}

// PackageResponse lists the versions of one package.
type PackageResponse struct {
	Name     string              `json:"name"`
	Versions []string            `json:"versions"`
	Latest   *catalog.Descriptor `json:"latest"`
}

func newValidationResponse(r *tosca.Report) *ValidationResponse {
	return &ValidationResponse{
		Valid:    r.OK(),
		Errors:   len(r.Errors()),
		Warnings: len(r.Warnings()),
		Report:   r,
	}
}

// checkOptions reads strict and ignore from the query, falling back to the
// server defaults.
func (s *Server) checkOptions(r *http.Request) tosca.CheckOptions {
	opts := tosca.CheckOptions{Strict: s.cfg.Strict}
	q := r.URL.Query()
	if v := q.Get("strict"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.Strict = b
		}
	}
	opts.Ignore = util.SplitCommaSeparated(q.Get("ignore"))
	return opts
}

func (s *Server) recordReport(kind string, r *tosca.Report) {
	result := "valid"
	if !r.OK() {
		result = "invalid"
	}
	s.metrics.Validations.WithLabelValues(kind, result).Inc()
	for _, i := range r.Issues {
		s.metrics.Issues.WithLabelValues(string(i.Severity), i.Code).Inc()
	}
}

func (s *Server) logEvent(e *audit.Event) {
	var err error
	if s.cfg.Audit != nil {
		err = s.cfg.Audit.Log(e)
	} else {
		err = audit.Log(e)
	}
	if err != nil {
		util.Warnf("Audit log: %v", err)
	}
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}

func (s *Server) handleValidateTemplate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := util.CoalesceString(r.URL.Query().Get("name"), "template.yaml")
	event := audit.NewEvent(s.cfg.User, audit.OpTemplateValidate, name).WithClientIP(r.RemoteAddr)

	data, err := readBody(w, r, s.cfg.MaxTemplateBytes)
	if err != nil {
		s.metrics.Validations.WithLabelValues("template", "rejected").Inc()
		s.logEvent(event.WithError(err).WithDuration(time.Since(start)))
		writeError(w, err)
		return
	}

	report := tosca.CheckBytes(name, data, s.checkOptions(r))
	s.recordReport("template", report)

	resp := newValidationResponse(report)
	event.WithCounts(resp.Errors, resp.Warnings).WithDuration(time.Since(start))
	status := http.StatusOK
	if resp.Valid {
		event.WithSuccess()
	} else {
		event.WithError(report.Err())
		status = http.StatusUnprocessableEntity
	}
	s.logEvent(event)
	writeJSON(w, status, resp)
}

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := util.CoalesceString(r.URL.Query().Get("name"), "upload.csar")
	event := audit.NewEvent(s.cfg.User, audit.OpPackageOnboard, name).WithClientIP(r.RemoteAddr)
	fail := func(result string, err error) {
		s.metrics.Onboardings.WithLabelValues(result).Inc()
		s.logEvent(event.WithError(err).WithDuration(time.Since(start)))
		writeError(w, err)
	}

	data, err := readBody(w, r, s.cfg.MaxPackageBytes)
	if err != nil {
		fail("invalid", err)
		return
	}
	pkg, err := csar.OpenBytes(name, data,
		csar.WithVersionConstraint(s.cfg.VersionConstraint),
		csar.WithMaxSize(s.cfg.MaxPackageBytes))
	if err != nil {
		s.metrics.Validations.WithLabelValues("package", "rejected").Inc()
		fail("invalid", err)
		return
	}

	report, err := pkg.Validate(r.Context(), csar.ValidateOptions{Check: s.checkOptions(r)})
	if err != nil {
		fail("failed", err)
		return
	}
	s.recordReport("package", report)
	event.WithCounts(len(report.Errors()), len(report.Warnings()))
	if !report.OK() {
		s.metrics.Onboardings.WithLabelValues("invalid").Inc()
		s.logEvent(event.WithError(report.Err()).WithDuration(time.Since(start)))
		writeJSON(w, http.StatusUnprocessableEntity, newValidationResponse(report))
		return
	}

	desc, err := catalog.NewDescriptor(pkg)
	if err != nil {
		fail("invalid", err)
		return
	}
	event.WithPackage(desc.Name, desc.Version, desc.Digest)

	stored, created, err := s.catalog.Onboard(r.Context(), desc)
	if err != nil {
		result := "failed"
		if errors.Is(err, util.ErrAlreadyExists) {
			result = "conflict"
		}
		fail(result, err)
		return
	}

	status, result := http.StatusOK, "unchanged"
	if created {
		status, result = http.StatusCreated, "created"
		w.Header().Set("Location", "/v1/packages/"+stored.Name+"/"+stored.Version)
	}
	s.metrics.Onboardings.WithLabelValues(result).Inc()
	s.logEvent(event.WithSuccess().WithDuration(time.Since(start)))
	writeJSON(w, status, &OnboardResponse{Created: created, Descriptor: stored, Report: report})
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	versions, err := s.catalog.Versions(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	latest, err := s.catalog.Get(r.Context(), name, versions[len(versions)-1])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &PackageResponse{Name: name, Versions: versions, Latest: latest})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	d, err := s.catalog.Get(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "version"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name, version := chi.URLParam(r, "name"), chi.URLParam(r, "version")
	event := audit.NewEvent(s.cfg.User, audit.OpPackageDelete, name+"/"+version).
		WithPackage(name, version, "").
		WithClientIP(r.RemoteAddr)

	if err := s.catalog.Delete(r.Context(), name, version); err != nil {
		s.logEvent(event.WithError(err).WithDuration(time.Since(start)))
		writeError(w, err)
		return
	}
	s.logEvent(event.WithSuccess().WithDuration(time.Since(start)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "catalog": "disabled"}
	if s.catalog == nil {
		writeJSON(w, http.StatusOK, status)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.catalog.Connect(ctx); err != nil {
		status["status"] = "degraded"
		status["catalog"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	status["catalog"] = "ok"
	writeJSON(w, http.StatusOK, status)
}
