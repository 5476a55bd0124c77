package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordEdit(t *testing.T) {
	before := testutil.ToFloat64(EditsTotal.WithLabelValues("fake", "ok"))

	RecordEdit("fake", "ok", 1.5)

	assert.Equal(t, before+1, testutil.ToFloat64(EditsTotal.WithLabelValues("fake", "ok")))
}

func TestRecordHTTP(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/api/test", "200"))

	RecordHTTP("/api/test", "200", 0.01)
	RecordHTTP("/api/test", "200", 0.02)

	assert.Equal(t, before+2, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/api/test", "200")))
}

func TestRecordCompositionAndError(t *testing.T) {
	compBefore := testutil.ToFloat64(CompositionsTotal.WithLabelValues("test"))
	errBefore := testutil.ToFloat64(ErrorsTotal.WithLabelValues("test", "decode"))

	RecordComposition("test")
	RecordError("test", "decode")

	assert.Equal(t, compBefore+1, testutil.ToFloat64(CompositionsTotal.WithLabelValues("test")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(ErrorsTotal.WithLabelValues("test", "decode")))
}
