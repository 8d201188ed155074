package amem

import (
	"github.com/dan-solli/agenticmemory/pkg/amemerr"
	"github.com/dan-solli/agenticmemory/pkg/codec"
)

// Report is the outcome of Validate: whether the on-disk `.amem` file and
// its immortal log both check out.
type Report struct {
	FileOK          bool
	NodeCount       uint64
	EdgeCount       uint64
	FileFailureKind amemerr.Kind
	FileDetail      string

	LogOK          bool
	LogFailureKind amemerr.Kind
	LogDetail      string
}

// Validate re-checks the `.amem` file's trailing digest (via codec.Validate)
// and replays the immortal log's hash chain without mutating it (via
// Store.Verify), catching both a corrupted file and mid-file log tampering
// a crash-recovery Open would otherwise silently truncate away. The
// returned error is non-nil exactly when the log chain itself is broken,
// carrying amemerr.IntegrityFailed; a bad `.amem` file is reported through
// FileOK/FileFailureKind instead, matching codec.Validate's own contract.
func (h *Handle) Validate() (*Report, error) {
	op := h.beginOp("validate")

	report := &Report{}
	fileErr := op.span("codec-validate", func() error {
		r, err := codec.Validate(h.path)
		if err != nil {
			return err
		}
		report.FileOK = r.OK
		report.NodeCount = r.NodeCount
		report.EdgeCount = r.EdgeCount
		report.FileFailureKind = r.FailureKind
		report.FileDetail = r.Detail
		return nil
	})
	if fileErr != nil {
		op.finish(fileErr)
		return nil, fileErr
	}

	logErr := op.span("log-verify", func() error {
		return h.log.Verify()
	})
	if logErr != nil {
		report.LogOK = false
		report.LogFailureKind = amemerr.KindOf(logErr)
		report.LogDetail = logErr.Error()
	} else {
		report.LogOK = true
	}

	op.finish(logErr)
	return report, logErr
}
