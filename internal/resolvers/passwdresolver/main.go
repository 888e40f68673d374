package passwdresolver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/resolvers"
)

const PasswdResolverType = "passwdresolver"

func init() {
	resolvers.Register(resolvers.Descriptor{
		Type:        PasswdResolverType,
		Description: "Read-only resolver for files in /etc/passwd format",
		Factory: func() models.ResolverImpl {
			return &passwdResolver{}
		},
	})
}

type passwdEntry struct {
	username string
	hash     string
	uid      string
	info     models.UserInfo
}

// passwdResolver reads username:password:uid:gid:gecos:home:shell lines. The
// gecos field is "Full Name,phone,mobile,email". Only bcrypt password hashes
// are accepted.
type passwdResolver struct {
	*models.BaseResolver

	byUID   map[string]*passwdEntry
	byLogin map[string]*passwdEntry
	dupes   map[string]bool
	index   *resolvers.SearchIndex
}

func (p *passwdResolver) Initialize(registration models.ResolverRegistration) error {
	p.BaseResolver = models.NewBaseResolver(registration,
		models.ResolverCapabilityLookupByLogin,
		models.ResolverCapabilityLookupByID,
		models.ResolverCapabilitySearch,
		models.ResolverCapabilityPassword,
	)

	fileName := registration.Data.GetStringWithDefault("fileName",
		registration.Data.GetStringWithDefault("filename", "/etc/passwd"))

	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open passwd file %s: %w", fileName, err)
	}
	defer file.Close()

	index, err := resolvers.NewSearchIndex()
	if err != nil {
		return err
	}
	p.index = index
	p.byUID = make(map[string]*passwdEntry)
	p.byLogin = make(map[string]*passwdEntry)
	p.dupes = make(map[string]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"resolver": registration.Name,
				"line":     lineNo,
			}).WithError(err).Warn("Skipping invalid passwd line")
			continue
		}
		if _, exists := p.byUID[entry.uid]; exists {
			p.dupes[entry.uid] = true
		}
		if _, exists := p.byLogin[entry.username]; exists {
			p.dupes["login:"+entry.username] = true
		}
		p.byUID[entry.uid] = entry
		p.byLogin[entry.username] = entry

		searchable := map[string]string{}
		for key, value := range entry.info {
			searchable[key] = fmt.Sprintf("%v", value)
		}
		if err := p.index.Index(entry.uid, searchable); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read passwd file %s: %w", fileName, err)
	}

	logrus.WithFields(logrus.Fields{
		"resolver": registration.Name,
		"file":     fileName,
		"users":    len(p.byUID),
	}).Debug("Passwd resolver ready")

	return nil
}

func parseLine(line string) (*passwdEntry, error) {
	fields := strings.Split(line, ":")
	if len(fields) < 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d", len(fields))
	}
	entry := &passwdEntry{
		username: fields[0],
		hash:     fields[1],
		uid:      fields[2],
		info: models.UserInfo{
			"username":    fields[0],
			"userid":      fields[2],
			"description": fields[4],
			"home":        fields[5],
			"shell":       fields[6],
		},
	}
	gecos := strings.Split(fields[4], ",")
	if names := strings.SplitN(strings.TrimSpace(gecos[0]), " ", 2); len(names[0]) > 0 {
		entry.info["givenname"] = names[0]
		if len(names) > 1 {
			entry.info["surname"] = names[1]
		}
	}
	for i, key := range []string{"", "phone", "mobile", "email"} {
		if i > 0 && i < len(gecos) && len(gecos[i]) > 0 {
			entry.info[key] = strings.TrimSpace(gecos[i])
		}
	}
	return entry, nil
}

func (p *passwdResolver) GetUserID(ctx context.Context, login string) models.Lookup {
	entry, ok := p.byLogin[login]
	if !ok {
		return models.NotFound()
	}
	if p.dupes["login:"+login] {
		return models.BackendError(fmt.Errorf("%w: login %s appears more than once", models.ErrAmbiguousIdentity, login))
	}
	return models.Found(entry.uid)
}

func (p *passwdResolver) GetUsername(ctx context.Context, uid string) models.Lookup {
	entry, ok := p.byUID[uid]
	if !ok {
		return models.NotFound()
	}
	if p.dupes[uid] {
		return models.BackendError(fmt.Errorf("%w: uid %s appears more than once", models.ErrAmbiguousIdentity, uid))
	}
	return models.Found(entry.username)
}

func (p *passwdResolver) GetUserInfo(ctx context.Context, uid string) (models.UserInfo, error) {
	entry, ok := p.byUID[uid]
	if !ok {
		return models.UserInfo{}, nil
	}
	info := models.UserInfo{}
	for key, value := range entry.info {
		info[key] = value
	}
	return info, nil
}

func (p *passwdResolver) CheckPassword(ctx context.Context, uid string, password string) (bool, error) {
	entry, ok := p.byUID[uid]
	if !ok || !strings.HasPrefix(entry.hash, "$2") {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(entry.hash), []byte(password)) == nil, nil
}

func (p *passwdResolver) Search(ctx context.Context, criteria map[string]string) ([]models.UserInfo, error) {
	ids, err := p.index.Search(criteria)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserInfo, 0, len(ids))
	for _, id := range ids {
		info, err := p.GetUserInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

func (p *passwdResolver) GetSearchFields() map[string]string {
	return map[string]string{
		"username":    "text",
		"userid":      "numeric",
		"description": "text",
		"email":       "text",
	}
}

func (p *passwdResolver) Close() error {
	if p.index != nil {
		return p.index.Close()
	}
	return nil
}
