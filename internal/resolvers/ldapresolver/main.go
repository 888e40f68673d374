package ldapresolver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/resolvers"
)

const LDAPResolverType = "ldapresolver"

func init() {
	resolvers.Register(resolvers.Descriptor{
		Type:        LDAPResolverType,
		Description: "Users in an LDAP directory or Active Directory",
		SecretKeys:  []string{"BINDPW"},
		Factory: func() models.ResolverImpl {
			return &ldapResolver{}
		},
	})
}

const uidTypeDN = "DN"

// directory is the subset of *ldap.Conn the resolver uses.
type directory interface {
	Bind(username, password string) error
	Search(searchRequest *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(addRequest *ldap.AddRequest) error
	Modify(modifyRequest *ldap.ModifyRequest) error
	Del(delRequest *ldap.DelRequest) error
}

type dialFunc func() (directory, func(), error)

/*
type: ldapresolver
data:

	LDAPURI: ldaps://ldap.example.com
	LDAPBASE: ou=people,dc=example,dc=com
	BINDDN: cn=admin,dc=example,dc=com
	BINDPW: secret
	LOGINNAMEATTRIBUTE: uid, mail
	LDAPSEARCHFILTER: (objectClass=inetOrgPerson)
	USERINFO: '{"username": "uid", "email": "mail", "givenname": "givenName", "surname": "sn"}'
	UIDTYPE: entryUUID
*/
type ldapResolver struct {
	*models.BaseResolver

	dial          dialFunc
	baseDN        string
	bindDN        string
	bindPW        string
	loginAttrs    []string
	searchFilter  string
	userInfo      map[string]string
	uidType       string
	sizeLimit     int
	timeout       time.Duration
	objectClasses []string
	dnTemplate    string
}

func (l *ldapResolver) Initialize(registration models.ResolverRegistration) error {
	data := registration.Data
	capabilities := []models.ResolverCapability{
		models.ResolverCapabilityLookupByLogin,
		models.ResolverCapabilityLookupByID,
		models.ResolverCapabilitySearch,
		models.ResolverCapabilityPassword,
	}
	if data.GetBoolWithDefault("EDITABLE", false) {
		capabilities = append(capabilities, models.ResolverCapabilityEditable)
	}
	l.BaseResolver = models.NewBaseResolver(registration, capabilities...)

	uri := data.GetStringWithDefault("LDAPURI", "")
	if len(uri) == 0 {
		return fmt.Errorf("%w: LDAPURI", models.ErrMissingParameter)
	}
	l.baseDN = data.GetStringWithDefault("LDAPBASE", "")
	l.bindDN = data.GetStringWithDefault("BINDDN", "")
	l.bindPW = data.GetStringWithDefault("BINDPW", "")
	l.searchFilter = data.GetStringWithDefault("LDAPSEARCHFILTER", "(objectClass=*)")
	l.uidType = data.GetStringWithDefault("UIDTYPE", uidTypeDN)
	l.sizeLimit = data.GetIntWithDefault("SIZELIMIT", 500)
	l.timeout = time.Duration(data.GetIntWithDefault("TIMEOUT", 5)) * time.Second
	l.dnTemplate = data.GetStringWithDefault("DN_TEMPLATE", "")

	l.loginAttrs, _ = data.GetStringSlice("LOGINNAMEATTRIBUTE")
	if len(l.loginAttrs) == 0 {
		l.loginAttrs = []string{"uid"}
	}
	l.objectClasses, _ = data.GetStringSlice("OBJECT_CLASSES")
	if len(l.objectClasses) == 0 {
		l.objectClasses = []string{"top", "person", "organizationalPerson", "inetOrgPerson"}
	}

	userInfo, err := parseUserInfo(data)
	if err != nil {
		return err
	}
	if _, ok := userInfo["username"]; !ok {
		userInfo["username"] = l.loginAttrs[0]
	}
	l.userInfo = userInfo

	if l.dial == nil {
		l.dial = l.connector(uri, data.GetBoolWithDefault("START_TLS", false),
			data.GetBoolWithDefault("TLS_VERIFY", true))
	}

	return nil
}

func parseUserInfo(data models.BasicConfig) (map[string]string, error) {
	if mapping, ok := data.GetStringMap("USERINFO"); ok {
		return mapping, nil
	}
	raw := data.GetStringWithDefault("USERINFO", "")
	if len(raw) == 0 {
		return map[string]string{
			"givenname": "givenName",
			"surname":   "sn",
			"email":     "mail",
			"phone":     "telephoneNumber",
			"mobile":    "mobile",
		}, nil
	}
	var mapping map[string]string
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, fmt.Errorf("%w: USERINFO is not valid JSON: %v", models.ErrInvalidParameter, err)
	}
	return mapping, nil
}

func (l *ldapResolver) connector(uri string, startTLS bool, verify bool) dialFunc {
	tlsConfig := &tls.Config{InsecureSkipVerify: !verify}
	return func() (directory, func(), error) {
		conn, err := ldap.DialURL(uri,
			ldap.DialWithDialer(&net.Dialer{Timeout: l.timeout}),
			ldap.DialWithTLSConfig(tlsConfig))
		if err != nil {
			return nil, nil, err
		}
		conn.SetTimeout(l.timeout)
		if startTLS {
			if err := conn.StartTLS(tlsConfig); err != nil {
				conn.Close()
				return nil, nil, err
			}
		}
		return conn, func() { conn.Close() }, nil
	}
}

func (l *ldapResolver) unavailable(err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrResolverUnavailable, l.GetName(), err)
}

// bound opens a connection bound as the service account.
func (l *ldapResolver) bound() (directory, func(), error) {
	conn, closer, err := l.dial()
	if err != nil {
		return nil, nil, l.unavailable(err)
	}
	if len(l.bindDN) > 0 {
		if err := conn.Bind(l.bindDN, l.bindPW); err != nil {
			closer()
			return nil, nil, l.unavailable(err)
		}
	}
	return conn, closer, nil
}

func (l *ldapResolver) attributes() []string {
	seen := map[string]bool{}
	var out []string
	add := func(attribute string) {
		if len(attribute) > 0 && !seen[strings.ToLower(attribute)] {
			seen[strings.ToLower(attribute)] = true
			out = append(out, attribute)
		}
	}
	for _, attribute := range l.loginAttrs {
		add(attribute)
	}
	keys := make([]string, 0, len(l.userInfo))
	for key := range l.userInfo {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		add(l.userInfo[key])
	}
	if !strings.EqualFold(l.uidType, uidTypeDN) {
		add(l.uidType)
	}
	return out
}

func (l *ldapResolver) search(conn directory, baseDN string, scope int, filter string) ([]*ldap.Entry, error) {
	request := ldap.NewSearchRequest(
		baseDN, scope, ldap.NeverDerefAliases,
		l.sizeLimit, int(l.timeout.Seconds()), false,
		filter, l.attributes(), nil,
	)
	result, err := conn.Search(request)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, err
	}
	return result.Entries, nil
}

// escapeWildcard escapes a search value but keeps "*" as wildcard.
func escapeWildcard(value string) string {
	parts := strings.Split(value, "*")
	for i, part := range parts {
		parts[i] = ldap.EscapeFilter(part)
	}
	return strings.Join(parts, "*")
}

func (l *ldapResolver) loginFilter(login string) string {
	var sb strings.Builder
	sb.WriteString("(&")
	sb.WriteString(l.searchFilter)
	if len(l.loginAttrs) > 1 {
		sb.WriteString("(|")
	}
	for _, attribute := range l.loginAttrs {
		fmt.Fprintf(&sb, "(%s=%s)", attribute, ldap.EscapeFilter(login))
	}
	if len(l.loginAttrs) > 1 {
		sb.WriteString(")")
	}
	sb.WriteString(")")
	return sb.String()
}

// uidFilter builds a filter for a uid attribute. objectGUID values are
// rendered as UUID strings and searched as escaped bytes.
func (l *ldapResolver) uidFilter(uid string) string {
	if strings.EqualFold(l.uidType, "objectGUID") {
		if parsed, err := uuid.Parse(uid); err == nil {
			raw := guidBytes(parsed)
			var sb strings.Builder
			for _, b := range raw {
				fmt.Fprintf(&sb, "\\%02x", b)
			}
			return fmt.Sprintf("(&%s(objectGUID=%s))", l.searchFilter, sb.String())
		}
	}
	return fmt.Sprintf("(&%s(%s=%s))", l.searchFilter, l.uidType, ldap.EscapeFilter(uid))
}

// guidBytes converts between the UUID string form and the mixed-endian
// byte layout Active Directory uses for objectGUID.
func guidBytes(id uuid.UUID) []byte {
	b := id[:]
	return []byte{
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15],
	}
}

func (l *ldapResolver) uidOf(entry *ldap.Entry) string {
	if strings.EqualFold(l.uidType, uidTypeDN) {
		return entry.DN
	}
	if strings.EqualFold(l.uidType, "objectGUID") {
		raw := entry.GetRawAttributeValue(l.uidType)
		if len(raw) == 16 {
			if id, err := uuid.FromBytes(guidBytes(uuid.UUID(raw))); err == nil {
				return id.String()
			}
		}
	}
	return entry.GetAttributeValue(l.uidType)
}

// findByUID returns the entry for uid, nil when it does not exist.
func (l *ldapResolver) findByUID(conn directory, uid string) (*ldap.Entry, error) {
	var entries []*ldap.Entry
	var err error
	if strings.EqualFold(l.uidType, uidTypeDN) {
		entries, err = l.search(conn, uid, ldap.ScopeBaseObject, l.searchFilter)
	} else {
		entries, err = l.search(conn, l.baseDN, ldap.ScopeWholeSubtree, l.uidFilter(uid))
	}
	if err != nil {
		return nil, l.unavailable(err)
	}
	switch len(entries) {
	case 0:
		return nil, nil
	case 1:
		return entries[0], nil
	default:
		return nil, fmt.Errorf("%w: uid %q matches %d entries", models.ErrAmbiguousIdentity, uid, len(entries))
	}
}

func (l *ldapResolver) HasMultipleLoginNames() bool {
	return len(l.loginAttrs) > 1
}

func (l *ldapResolver) GetUserID(ctx context.Context, login string) models.Lookup {
	conn, closer, err := l.bound()
	if err != nil {
		return models.BackendError(err)
	}
	defer closer()

	entries, err := l.search(conn, l.baseDN, ldap.ScopeWholeSubtree, l.loginFilter(login))
	if err != nil {
		return models.BackendError(l.unavailable(err))
	}
	switch len(entries) {
	case 0:
		return models.NotFound()
	case 1:
		return models.Found(l.uidOf(entries[0]))
	default:
		return models.BackendError(fmt.Errorf("%w: login %q matches %d entries", models.ErrAmbiguousIdentity, login, len(entries)))
	}
}

func (l *ldapResolver) GetUsername(ctx context.Context, uid string) models.Lookup {
	conn, closer, err := l.bound()
	if err != nil {
		return models.BackendError(err)
	}
	defer closer()

	entry, err := l.findByUID(conn, uid)
	if err != nil {
		return models.BackendError(err)
	}
	if entry == nil {
		return models.NotFound()
	}
	return models.Found(entry.GetAttributeValue(l.loginAttrs[0]))
}

func (l *ldapResolver) toInfo(entry *ldap.Entry) models.UserInfo {
	info := models.UserInfo{}
	for key, attribute := range l.userInfo {
		values := entry.GetAttributeValues(attribute)
		switch len(values) {
		case 0:
		case 1:
			info[key] = values[0]
		default:
			info[key] = values
		}
	}
	info["userid"] = l.uidOf(entry)
	return info
}

func (l *ldapResolver) GetUserInfo(ctx context.Context, uid string) (models.UserInfo, error) {
	conn, closer, err := l.bound()
	if err != nil {
		return nil, err
	}
	defer closer()

	entry, err := l.findByUID(conn, uid)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return models.UserInfo{}, nil
	}
	return l.toInfo(entry), nil
}

// CheckPassword binds as the user. An empty password is always rejected so
// an unauthenticated bind can never pass.
func (l *ldapResolver) CheckPassword(ctx context.Context, uid string, password string) (bool, error) {
	if len(password) == 0 {
		return false, nil
	}

	dn := uid
	if !strings.EqualFold(l.uidType, uidTypeDN) {
		conn, closer, err := l.bound()
		if err != nil {
			return false, err
		}
		entry, err := l.findByUID(conn, uid)
		closer()
		if err != nil {
			return false, err
		}
		if entry == nil {
			return false, nil
		}
		dn = entry.DN
	}

	conn, closer, err := l.dial()
	if err != nil {
		return false, l.unavailable(err)
	}
	defer closer()

	if err := conn.Bind(dn, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			logrus.WithFields(logrus.Fields{
				"resolver": l.GetName(),
			}).Debug("LDAP bind with user credentials failed")
			return false, nil
		}
		return false, l.unavailable(err)
	}
	return true, nil
}

func (l *ldapResolver) Search(ctx context.Context, criteria map[string]string) ([]models.UserInfo, error) {
	keys := make([]string, 0, len(criteria))
	for key := range criteria {
		if _, ok := l.userInfo[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("(&")
	sb.WriteString(l.searchFilter)
	for _, key := range keys {
		fmt.Fprintf(&sb, "(%s=%s)", l.userInfo[key], escapeWildcard(criteria[key]))
	}
	sb.WriteString(")")

	conn, closer, err := l.bound()
	if err != nil {
		return nil, err
	}
	defer closer()

	entries, err := l.search(conn, l.baseDN, ldap.ScopeWholeSubtree, sb.String())
	if err != nil {
		return nil, l.unavailable(err)
	}
	out := make([]models.UserInfo, 0, len(entries))
	for _, entry := range entries {
		out = append(out, l.toInfo(entry))
	}
	return out, nil
}

func (l *ldapResolver) GetSearchFields() map[string]string {
	fields := map[string]string{}
	for key := range l.userInfo {
		fields[key] = "text"
	}
	return fields
}

// ldapAttributes maps user attributes to directory attributes.
func (l *ldapResolver) ldapAttributes(attributes models.UserInfo) map[string][]string {
	out := map[string][]string{}
	for key, value := range attributes {
		var values []string
		switch v := value.(type) {
		case []string:
			values = v
		case []any:
			for _, item := range v {
				values = append(values, fmt.Sprintf("%v", item))
			}
		default:
			values = []string{fmt.Sprintf("%v", v)}
		}
		switch key {
		case "password":
			out["userPassword"] = values
		case "userid":
		default:
			if attribute, ok := l.userInfo[key]; ok {
				out[attribute] = values
			}
		}
	}
	return out
}

func (l *ldapResolver) renderDN(attributes models.UserInfo) string {
	replacer := strings.NewReplacer(
		"<username>", ldap.EscapeDN(attributes.GetString("username")),
		"<givenname>", ldap.EscapeDN(attributes.GetString("givenname")),
		"<surname>", ldap.EscapeDN(attributes.GetString("surname")),
		"<basedn>", l.baseDN,
	)
	return replacer.Replace(l.dnTemplate)
}

func (l *ldapResolver) AddUser(ctx context.Context, attributes models.UserInfo) (string, error) {
	if !l.Editable() {
		return l.BaseResolver.AddUser(ctx, attributes)
	}
	if len(l.dnTemplate) == 0 {
		return "", fmt.Errorf("%w: DN_TEMPLATE", models.ErrMissingParameter)
	}
	username := attributes.GetString("username")
	if len(username) == 0 {
		return "", fmt.Errorf("%w: username", models.ErrMissingParameter)
	}

	dn := l.renderDN(attributes)
	request := ldap.NewAddRequest(dn, nil)
	request.Attribute("objectClass", l.objectClasses)
	mapped := l.ldapAttributes(attributes)
	names := make([]string, 0, len(mapped))
	for name := range mapped {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		request.Attribute(name, mapped[name])
	}

	conn, closer, err := l.bound()
	if err != nil {
		return "", err
	}
	err = conn.Add(request)
	closer()
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) {
			return "", fmt.Errorf("%w: %s", models.ErrUserExists, username)
		}
		return "", l.unavailable(err)
	}

	if strings.EqualFold(l.uidType, uidTypeDN) {
		return dn, nil
	}
	lookup := l.GetUserID(ctx, username)
	if !lookup.IsFound() {
		return "", fmt.Errorf("user %s was added but can not be read back: %v", username, lookup.Err)
	}
	return lookup.Value, nil
}

func (l *ldapResolver) UpdateUser(ctx context.Context, uid string, attributes models.UserInfo) (bool, error) {
	if !l.Editable() {
		return l.BaseResolver.UpdateUser(ctx, uid, attributes)
	}
	conn, closer, err := l.bound()
	if err != nil {
		return false, err
	}
	defer closer()

	entry, err := l.findByUID(conn, uid)
	if err != nil || entry == nil {
		return false, err
	}

	mapped := l.ldapAttributes(attributes)
	if len(mapped) == 0 {
		return false, nil
	}
	names := make([]string, 0, len(mapped))
	for name := range mapped {
		names = append(names, name)
	}
	sort.Strings(names)

	request := ldap.NewModifyRequest(entry.DN, nil)
	for _, name := range names {
		request.Replace(name, mapped[name])
	}
	if err := conn.Modify(request); err != nil {
		return false, l.unavailable(err)
	}
	return true, nil
}

func (l *ldapResolver) DeleteUser(ctx context.Context, uid string) (bool, error) {
	if !l.Editable() {
		return l.BaseResolver.DeleteUser(ctx, uid)
	}
	conn, closer, err := l.bound()
	if err != nil {
		return false, err
	}
	defer closer()

	entry, err := l.findByUID(conn, uid)
	if err != nil || entry == nil {
		return false, err
	}
	if err := conn.Del(ldap.NewDelRequest(entry.DN, nil)); err != nil {
		return false, l.unavailable(err)
	}
	return true, nil
}
