package csar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"time"

	"github.com/nfvpack/nfvpack/pkg/signature"
	"github.com/nfvpack/nfvpack/pkg/tosca"
	"github.com/nfvpack/nfvpack/pkg/util"
	"github.com/nfvpack/nfvpack/pkg/version"
)

// Issue codes raised for package contents.
const (
	CodeMissingReference = "missing-external-reference"
	CodeUnreachableURL   = "unreachable-url"
	CodeMissingArtifact  = "missing-signed-artifact"
	CodeDigestMismatch   = "digest-mismatch"
)

// ValidateOptions tunes Validate.
type ValidateOptions struct {
	Check tosca.CheckOptions
	// ProbeURLs issues a HEAD request for every remote reference.
	ProbeURLs bool
	// HTTPClient is used for probes; a 10 second client when nil.
	HTTPClient *http.Client
}

// Validate checks the entry template and everything it imports, then verifies
// that referenced files exist and that metadata.artifacts digests match the
// archived blobs.
func (p *Package) Validate(ctx context.Context, opts ValidateOptions) (*tosca.Report, error) {
	log := util.WithPackage(p.source)

	defs, err := tosca.NewLoader(p.fsys).Load(p.entry)
	if err != nil {
		var pe *tosca.ParseError
		if !errors.As(err, &pe) {
			return nil, fmt.Errorf("loading %s: %w", p.entry, err)
		}
		r := tosca.NewReport(p.source)
		r.Errorf(tosca.CodeParseError, pe.File, "", pe.Line, "%v", pe.Err)
		return r, nil
	}

	r := tosca.Check(defs, tosca.CheckOptions{})
	r.Source = p.source

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	for _, name := range defs.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st := defs.Templates[name]
		p.checkReferences(ctx, r, st, opts.ProbeURLs, client)
		p.verifyArtifacts(r, st)
	}

	r.Finalize(opts.Check)
	log.Debugf("Validated: %d errors, %d warnings", len(r.Errors()), len(r.Warnings()))
	return r, nil
}

func (p *Package) checkReferences(ctx context.Context, r *tosca.Report, st *tosca.ServiceTemplate, probe bool, client *http.Client) {
	for _, ref := range st.ExternalReferences() {
		if ref.IsURL() {
			if !probe {
				continue
			}
			if err := probeURL(ctx, client, ref.Target); err != nil {
				r.Warnf(CodeUnreachableURL, st.Path, ref.Path, ref.Line, "%s: %v", ref.Target, err)
			}
			continue
		}
		target := path.Join(path.Dir(st.Path), ref.Target)
		if escapesRoot(target) || !p.Has(target) {
			r.Errorf(CodeMissingReference, st.Path, ref.Path, ref.Line,
				"%q does not exist in the package", ref.Target)
		}
	}
}

// verifyArtifacts hashes every signed blob. Malformed signature blocks were
// already reported by the template check and are skipped here.
func (p *Package) verifyArtifacts(r *tosca.Report, st *tosca.ServiceTemplate) {
	for name, a := range st.Metadata.Artifacts {
		if a == nil || a.Signature == nil {
			continue
		}
		if signature.CheckDeclared(a.Signature.Algorithm, a.Signature.Digest) != nil {
			continue
		}
		issuePath := "metadata.artifacts." + name
		file, ok := p.locate(st.Path, name)
		if !ok {
			r.Errorf(CodeMissingArtifact, st.Path, issuePath, a.Line,
				"signed artifact %q is not in the package", name)
			continue
		}
		err := p.verifyFile(file, a.Signature)
		switch {
		case errors.Is(err, signature.ErrDigestMismatch):
			r.Errorf(CodeDigestMismatch, st.Path, issuePath, a.Line, "%s: %v", file, err)
		case err != nil:
			r.Errorf(CodeMissingArtifact, st.Path, issuePath, a.Line, "%s: %v", file, err)
		}
	}
}

// locate resolves an artifact name relative to the declaring template, then
// relative to the archive root.
func (p *Package) locate(templatePath, name string) (string, bool) {
	for _, candidate := range []string{path.Join(path.Dir(templatePath), name), path.Clean(name)} {
		if !escapesRoot(candidate) && p.Has(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (p *Package) verifyFile(name string, sig *tosca.Signature) error {
	f, err := p.fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return signature.Verify(sig.Algorithm, sig.Digest, f)
}

func probeURL(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("HEAD returned %s", resp.Status)
	}
	return nil
}

// ArtifactDigests computes a metadata.artifacts signature for each named file
// using the given algorithm.
func ArtifactDigests(fsys fs.FS, algorithm string, names []string) (map[string]*tosca.ArtifactSignature, error) {
	alg, ok := signature.Lookup(algorithm)
	if !ok {
		return nil, fmt.Errorf("%w: %s", signature.ErrUnknownAlgorithm, algorithm)
	}
	out := make(map[string]*tosca.ArtifactSignature, len(names))
	for _, name := range names {
		f, err := fsys.Open(name)
		if err != nil {
			return nil, err
		}
		digest, err := alg.Encode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", name, err)
		}
		out[name] = &tosca.ArtifactSignature{
			ContentType: contentType(name),
			Signature:   &tosca.Signature{Algorithm: alg.Name, Digest: digest},
		}
	}
	return out, nil
}
