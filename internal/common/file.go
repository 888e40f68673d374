package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ReadDataToInterface decodes JSON or YAML into T. YAML is converted to JSON
// first so custom JSON unmarshalers apply to both formats.
func ReadDataToInterface[T any](data []byte, _ T) (*T, error) {

	var item T

	// remove all starting whitespace including newlines to figure out
	// what the first character is
	data = bytes.TrimLeftFunc(data, unicode.IsSpace)

	if len(data) == 0 {
		return nil, fmt.Errorf("no data provided")

	} else if data[0] == '{' || data[0] == '[' {
		// If JSON we can unmarshal directly
		logrus.Debugln("Data format detected: JSON")
	} else {
		var yamlData any
		if err := yaml.Unmarshal(data, &yamlData); err != nil {
			logrus.WithError(err).Errorln("Failed to unmarshal YAML")
			return nil, err
		}

		if jsonData, err := json.Marshal(yamlData); err != nil {
			logrus.WithError(err).Errorln("Failed to convert YAML to JSON")
			return nil, err
		} else {
			data = jsonData
		}
	}

	if err := json.Unmarshal(data, &item); err != nil {
		logrus.WithError(err).Errorln("Failed to unmarshal JSON data")
		return nil, fmt.Errorf("failed to unmarshal JSON file: %w", err)
	}

	return &item, nil
}

// ReadFileOrStdin reads the named file, or stdin when the name is empty or "-".
// The returned name is suitable for messages.
func ReadFileOrStdin(filename string, stdin io.Reader) ([]byte, string, error) {
	if len(filename) == 0 || filename == "-" {
		data, err := io.ReadAll(stdin)
		return data, "Standard input", err
	}
	data, err := os.ReadFile(filename)
	return data, filename, err
}
