package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/model"
)

// Format is a package encoding.
type Format string

const (
	JSON    Format = "json"
	MsgPack Format = "msgpack"
)

// ParseFormat parses an encoding name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "msgpack", "messagepack":
		return MsgPack, nil
	}
	return "", errors.NewInvalidConfigurationf("unknown output format %q (expected json or msgpack)", s)
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == MsgPack {
		return "msgpack"
	}
	return "json"
}

// Encode writes pkg to w. MessagePack uses the same field names as JSON.
func Encode(w io.Writer, pkg *model.EvidencePackage, f Format, pretty bool) error {
	switch f {
	case MsgPack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		enc.UseCompactInts(true)
		return errors.Wrap(enc.Encode(pkg), "encode msgpack")
	case JSON, "":
		enc := json.NewEncoder(w)
		if pretty {
			enc.SetIndent("", "  ")
		}
		return errors.Wrap(enc.Encode(pkg), "encode json")
	}
	return errors.NewInvalidConfigurationf("unknown output format %q", string(f))
}

// Decode reads a package written by Encode.
func Decode(r io.Reader, f Format) (*model.EvidencePackage, error) {
	var pkg model.EvidencePackage
	switch f {
	case MsgPack:
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&pkg); err != nil {
			return nil, errors.Wrap(err, "decode msgpack")
		}
	default:
		if err := json.NewDecoder(r).Decode(&pkg); err != nil {
			return nil, errors.Wrap(err, "decode json")
		}
	}
	return &pkg, nil
}

// Trim returns a copy of pkg reduced for verbosity. Minimal keeps one
// excerpt per finding and drops the per-process list; Standard and Full
// return pkg unchanged.
func Trim(pkg *model.EvidencePackage, v compactor.Verbosity) *model.EvidencePackage {
	if v != compactor.Minimal {
		return pkg
	}
	out := *pkg
	out.Findings = make([]model.ErrorFinding, len(pkg.Findings))
	for i, f := range pkg.Findings {
		if len(f.MatchedEvidence) > 1 {
			f.MatchedEvidence = f.MatchedEvidence[:1]
		}
		out.Findings[i] = f
	}
	if pkg.Resources != nil {
		res := *pkg.Resources
		res.PerProcess = nil
		out.Resources = &res
	}
	out.EstimatedTokens = EstimateTokens(&out)
	return &out
}
