package manage

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/edumfa/edumfa-go/internal/common"
	"github.com/edumfa/edumfa-go/internal/events"
	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/registry"
)

// DocumentVersion is written into exported documents.
const DocumentVersion = "1.0"

// ConfigStore keeps policies and event definitions.
type ConfigStore interface {
	ListPolicies(ctx context.Context, name string) ([]models.Policy, error)
	SetPolicy(ctx context.Context, policy models.Policy) (int64, error)
	DeletePolicy(ctx context.Context, name string) (int64, error)
	ListEvents(ctx context.Context) ([]models.EventDefinition, error)
	SetEvent(ctx context.Context, event models.EventDefinition) (int64, error)
	DeleteEvent(ctx context.Context, id int64) (int64, error)
}

type Outcome string

const (
	OutcomeAdded   Outcome = "Added"
	OutcomeUpdated Outcome = "Updated"
	OutcomeSkipped Outcome = "Skipped"
)

// ImportResult is the outcome of importing one entry.
type ImportResult struct {
	Name    string
	Outcome Outcome
}

// Manager imports and exports the administrative configuration. Progress
// messages go to Out, cleanup messages to Err.
type Manager struct {
	Registry *registry.Registry
	Store    ConfigStore
	// Events validates imported event definitions when set.
	Events *events.Dispatcher

	In  io.Reader
	Out io.Writer
	Err io.Writer
}

func NewManager(reg *registry.Registry, store ConfigStore) *Manager {
	return &Manager{
		Registry: reg,
		Store:    store,
		In:       os.Stdin,
		Out:      os.Stdout,
		Err:      os.Stderr,
	}
}

func (m *Manager) printf(format string, args ...any) {
	fmt.Fprintf(m.Out, format+"\n", args...)
}

// ConfImport reads a configuration document from filename, or from standard
// input when filename is empty. Old exports that hold a bare list are read as
// a document with the single section conftype. The returned sections are
// conftype if given, otherwise every section of the document.
func (m *Manager) ConfImport(filename, conftype string) (*models.ConfigDocument, []string, error) {
	data, source, err := common.ReadFileOrStdin(filename, m.In)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	contents, err := common.ReadDataToInterface(data, any(nil))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	var conftypes []string
	switch raw := (*contents).(type) {
	case []any:
		if len(conftype) == 0 {
			return nil, nil, fmt.Errorf("%w: conftype is required for a list document", models.ErrMissingParameter)
		}
		*contents = map[string]any{conftype: raw}
		conftypes = []string{conftype}
	case map[string]any:
		if len(conftype) > 0 {
			conftypes = []string{conftype}
		} else {
			for _, known := range models.DefaultConfTypes {
				if _, ok := raw[known]; ok {
					conftypes = append(conftypes, known)
				}
			}
		}
	default:
		return nil, nil, fmt.Errorf("%w: %s is not a configuration document", models.ErrInvalidParameter, source)
	}

	for _, t := range conftypes {
		if !slices.Contains(models.DefaultConfTypes, t) {
			return nil, nil, fmt.Errorf("%w: unknown conftype %q", models.ErrInvalidParameter, t)
		}
	}

	var document models.ConfigDocument
	if err := common.ConvertInterfaceToInterface(*contents, &document); err != nil {
		return nil, nil, fmt.Errorf("failed to read configuration from %s: %w", source, err)
	}

	for _, t := range conftypes {
		m.printf("Importing %s from %s", t, source)
	}
	return &document, conftypes, nil
}

// ConfExport writes the document as YAML to filename, or to Out when
// filename is empty.
func (m *Manager) ConfExport(document *models.ConfigDocument, filename string) error {
	if document.Version == nil {
		document.Version = version.Must(version.NewVersion(DocumentVersion))
	}
	data, err := yaml.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if len(filename) > 0 {
		return os.WriteFile(filename, data, 0o600)
	}
	_, err = m.Out.Write(data)
	return err
}

// Export collects the given sections. name restricts every section to
// entries of that name.
func (m *Manager) Export(ctx context.Context, conftypes []string, name string, printPasswords bool) (*models.ConfigDocument, error) {
	if len(conftypes) == 0 {
		conftypes = models.DefaultConfTypes
	}
	document := &models.ConfigDocument{Version: version.Must(version.NewVersion(DocumentVersion))}
	for _, conftype := range conftypes {
		var err error
		switch conftype {
		case models.ConfTypePolicy:
			document.Policy, err = m.GetConfPolicy(ctx, name)
		case models.ConfTypeResolver:
			document.Resolver = m.GetConfResolver(name, printPasswords)
		case models.ConfTypeEvent:
			document.Event, err = m.GetConfEvent(ctx, name)
		default:
			err = fmt.Errorf("%w: unknown conftype %q", models.ErrInvalidParameter, conftype)
		}
		if err != nil {
			return nil, err
		}
	}
	return document, nil
}

// Import imports the given sections of the document.
func (m *Manager) Import(ctx context.Context, document *models.ConfigDocument, conftypes []string, cleanup, update bool) ([]ImportResult, error) {
	if len(conftypes) == 0 {
		conftypes = document.ConfTypes()
	}
	var results []ImportResult
	for _, conftype := range conftypes {
		var (
			imported []ImportResult
			err      error
		)
		switch conftype {
		case models.ConfTypePolicy:
			imported, err = m.ImportConfPolicy(ctx, document.Policy, cleanup, update)
		case models.ConfTypeResolver:
			imported, err = m.ImportConfResolver(ctx, document.Resolver, cleanup, update)
		case models.ConfTypeEvent:
			imported, err = m.ImportConfEvent(ctx, document.Event, cleanup, update)
		default:
			err = fmt.Errorf("%w: unknown conftype %q", models.ErrInvalidParameter, conftype)
		}
		results = append(results, imported...)
		if err != nil {
			return results, err
		}
	}
	logrus.WithField("entries", len(results)).Debug("Imported configuration")
	return results, nil
}
