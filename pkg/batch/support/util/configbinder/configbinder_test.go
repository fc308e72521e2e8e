package configbinder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tablesync/pkg/batch/support/util/configbinder"
)

type pool struct {
	MaxOpenConns int `yaml:"max_open_conns"`
}

type target struct {
	Type   string            `yaml:"type"`
	Port   int               `yaml:"port"`
	Params map[string]string `yaml:"params"`
	Pool   pool              `yaml:"pool"`
}

func TestBind(t *testing.T) {
	var got target
	err := configbinder.Bind(map[string]interface{}{
		"type":   "postgres",
		"port":   "5432",
		"params": map[string]interface{}{"connect_timeout": 10},
		"pool":   map[string]interface{}{"max_open_conns": "2"},
	}, &got)

	require.NoError(t, err)
	assert.Equal(t, target{
		Type:   "postgres",
		Port:   5432,
		Params: map[string]string{"connect_timeout": "10"},
		Pool:   pool{MaxOpenConns: 2},
	}, got)
}

func TestBind_RejectsWrongShape(t *testing.T) {
	var got target
	err := configbinder.Bind(map[string]interface{}{"pool": "wide"}, &got)
	assert.Error(t, err)
}
