package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrijs2005/skybox/internal/common"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skybox_uploads_total",
		Help: "Upload attempts by result.",
	}, []string{"result"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skybox_upload_bytes_total",
		Help: "Bytes accepted by successful uploads.",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skybox_downloads_total",
		Help: "Download attempts by result.",
	}, []string{"result"})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skybox_deletes_total",
		Help: "Delete attempts by result.",
	}, []string{"result"})

	inconsistentStateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skybox_inconsistent_state_total",
		Help: "File records whose object is missing from the store.",
	})

	paymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skybox_payments_total",
		Help: "Payment verifications by result.",
	}, []string{"result"})
)

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrInconsistentState):
		return "inconsistent_state"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrorForbidden):
		return "forbidden"
	case errors.Is(err, common.ErrorUnauthorized):
		return "unauthorized"
	case errors.Is(err, common.ErrorInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, common.ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, common.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, common.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, common.ErrExternalStore):
		return "external_store"
	default:
		return "error"
	}
}
