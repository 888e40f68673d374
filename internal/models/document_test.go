package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigDocument_Unmarshal(t *testing.T) {
	yamlInput := `
version: 1.2
resolver:
  - resolvername: reso1
    type: passwdresolver
    data:
      fileName: /etc/passwd
policy:
  - name: pol1
    scope: authentication
    action: otppin=userstore
`

	t.Run("YAML", func(t *testing.T) {
		var doc ConfigDocument
		require.NoError(t, yaml.Unmarshal([]byte(yamlInput), &doc))

		assert.Equal(t, "1.2.0", doc.Version.String())
		require.Len(t, doc.Resolver, 1)
		assert.Equal(t, "reso1", doc.Resolver[0].Name)
		assert.Equal(t, "passwdresolver", doc.Resolver[0].Type)
		assert.Equal(t, "/etc/passwd", doc.Resolver[0].Data["fileName"])
		require.Len(t, doc.Policy, 1)
		assert.Equal(t, []string{ConfTypePolicy, ConfTypeResolver}, doc.ConfTypes())
	})

	t.Run("JSON without version", func(t *testing.T) {
		var doc ConfigDocument
		require.NoError(t, json.Unmarshal([]byte(`{"event":[{"name":"ev1","handlermodule":"Counter","action":"increase_counter"}]}`), &doc))

		assert.Equal(t, "1.0.0", doc.Version.String())
		require.Len(t, doc.Event, 1)
		assert.Equal(t, "Counter", doc.Event[0].HandlerModule)
		assert.True(t, doc.Event[0].IsActive())
	})
}
