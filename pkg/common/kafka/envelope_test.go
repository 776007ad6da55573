package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
)

func TestPayloadRoundTrip(t *testing.T) {
	text := "wheezing"
	in := models.BatchProfileRequest{
		BatchID: "batch-7",
		Records: []models.RawSubjectRecord{{SubjectID: "p-1", Age: models.IntValue(31), Gender: "F"}},
		Texts:   []*string{&text},
		K:       3,
		Epsilon: 0.5,
	}
	data, err := ToData(in)
	require.NoError(t, err)
	assert.Equal(t, "batch-7", data["batch_id"])

	var out models.BatchProfileRequest
	require.NoError(t, DecodeData(data, &out))
	assert.Equal(t, in, out)
}

func TestToDataRejectsNonObjects(t *testing.T) {
	_, err := ToData([]int{1, 2})
	assert.Error(t, err)
	_, err = ToData(func() {})
	assert.Error(t, err)
}

func TestDecodeDataTypeMismatch(t *testing.T) {
	var out models.BatchProfileRequest
	err := DecodeData(map[string]interface{}{"records": "not a list"}, &out)
	assert.Error(t, err)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent("raw-record-batch", "test", map[string]interface{}{"k": 1})
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "raw-record-batch", e.Type)
	assert.Equal(t, "test", e.Source)
	assert.False(t, e.Timestamp.IsZero())
}
