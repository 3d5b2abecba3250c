package config

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoZeroFields(t *testing.T) {
	cfg := Default()

	for _, field := range visit(newVar(*cfg), "Config", false) {
		assert.Fail(t, "zero-value field", field)
	}
}

func TestLoad(t *testing.T) {
	t.Run("partial document", func(t *testing.T) {
		cfg, err := Load(strings.NewReader("body:\n  scratch_size: 1024\nheaders:\n  max_status_line: 64\n"))
		require.NoError(t, err)
		require.Equal(t, 1024, cfg.Body.ScratchSize)
		require.Equal(t, 64, cfg.Headers.MaxStatusLine)
		require.Equal(t, Default().Body.MaxChunkSizeLine, cfg.Body.MaxChunkSizeLine)
		require.Equal(t, Default().NET.ReadBufferSize, cfg.NET.ReadBufferSize)
	})

	t.Run("empty document", func(t *testing.T) {
		cfg, err := Load(strings.NewReader(""))
		require.NoError(t, err)
		require.Equal(t, Default(), cfg)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := Load(strings.NewReader("net:\n  read_buffer_size: 0\n"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(strings.NewReader("body: [1, 2"))
		require.Error(t, err)
	})
}

type variable struct {
	Type  reflect.Type
	Value reflect.Value
}

func newVar(a any) variable {
	return variable{reflect.TypeOf(a), reflect.ValueOf(a)}
}

func visit(a variable, name string, nullable bool) (fields []string) {
	if a.Type.Kind() == reflect.Struct {
		for field := range a.Value.NumField() {
			v1 := variable{a.Type.Field(field).Type, a.Value.Field(field)}
			fieldname := a.Type.Field(field).Name
			isNullable := a.Type.Field(field).Tag.Get("test") == "nullable"
			fields = append(fields, visit(v1, name+"."+fieldname, isNullable)...)
		}

		return fields
	}

	if a.Value.IsZero() && !nullable {
		return []string{name}
	}

	return nil
}
