package jobs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/mrstep/pkg/core"
)

func identityMap(key, value string) []core.KeyValue {
	return []core.KeyValue{{Key: key, Value: value}}
}

func firstReduce(key string, values []string) core.KeyValue {
	return core.KeyValue{Key: key, Value: values[0]}
}

func TestRegisterAndGet(t *testing.T) {
	err := Register("registry-test-identity", Job{Map: identityMap, Reduce: firstReduce})
	require.NoError(t, err)

	job, err := Get("registry-test-identity")
	require.NoError(t, err)
	require.NotNil(t, job.Map)
	require.Contains(t, List(), "registry-test-identity")
}

func TestRegister_Duplicate(t *testing.T) {
	require.NoError(t, Register("registry-test-dup", Job{Map: identityMap, Reduce: firstReduce}))
	require.Error(t, Register("registry-test-dup", Job{Map: identityMap, Reduce: firstReduce}))
}

func TestRegister_MissingFunctions(t *testing.T) {
	require.Error(t, Register("registry-test-nomap", Job{Reduce: firstReduce}))
}

func TestGet_Unknown(t *testing.T) {
	_, err := Get("registry-test-missing")
	require.True(t, errors.Is(err, ErrJobNotFound))
}
