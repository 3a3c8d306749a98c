package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveAdmissionDefaultsToOK(t *testing.T) {
	before := testutil.ToFloat64(AdmissionOperations.WithLabelValues("approve", "ok"))

	ObserveAdmission("approve", "")

	after := testutil.ToFloat64(AdmissionOperations.WithLabelValues("approve", "ok"))
	require.Equal(t, before+1, after)
}

func TestObserveAdmissionRecordsErrorCode(t *testing.T) {
	before := testutil.ToFloat64(AdmissionOperations.WithLabelValues("submit", "SLOT_FULL"))

	ObserveAdmission("submit", "SLOT_FULL")

	require.Equal(t, before+1, testutil.ToFloat64(AdmissionOperations.WithLabelValues("submit", "SLOT_FULL")))
}
