package store

// Rows as stored. Free-form configuration is kept as JSON text.

type resolverRow struct {
	ID       int64  `gorm:"primaryKey"`
	Name     string `gorm:"uniqueIndex;size:255"`
	Type     string `gorm:"column:rtype;size:255"`
	Priority int
	Data     string
}

func (resolverRow) TableName() string { return "resolver" }

type realmRow struct {
	ID           int64  `gorm:"primaryKey"`
	Name         string `gorm:"uniqueIndex;size:255"`
	DefaultRealm bool   `gorm:"column:default_realm"`
}

func (realmRow) TableName() string { return "realm" }

type resolverRealmRow struct {
	ID         int64 `gorm:"primaryKey"`
	ResolverID int64
	RealmID    int64
	Priority   *int
}

func (resolverRealmRow) TableName() string { return "resolverrealm" }

type customAttributeRow struct {
	ID       int64  `gorm:"primaryKey"`
	UserID   string `gorm:"column:user_id;size:320"`
	Resolver string `gorm:"size:120"`
	RealmID  int64
	Key      string `gorm:"size:255"`
	Value    string
	Type     string `gorm:"size:100"`
}

func (customAttributeRow) TableName() string { return "customuserattribute" }

type tokenRow struct {
	ID        int64  `gorm:"primaryKey"`
	Serial    string `gorm:"uniqueIndex;size:40"`
	TokenType string `gorm:"column:tokentype;size:30"`
	Active    bool
}

func (tokenRow) TableName() string { return "token" }

type tokenOwnerRow struct {
	ID           int64 `gorm:"primaryKey"`
	TokenID      int64
	Resolver     string `gorm:"size:120"`
	ResolverType string `gorm:"size:120"`
	UserID       string `gorm:"column:user_id;size:320"`
	RealmID      int64
}

func (tokenOwnerRow) TableName() string { return "tokenowner" }

type policyRow struct {
	ID       int64  `gorm:"primaryKey"`
	Name     string `gorm:"uniqueIndex;size:64"`
	Scope    string `gorm:"size:32"`
	Active   bool
	Priority int
	Data     string
}

func (policyRow) TableName() string { return "policy" }

type eventRow struct {
	ID            int64  `gorm:"primaryKey"`
	Name          string `gorm:"size:64"`
	Ordering      int
	Position      string `gorm:"size:10"`
	Active        bool
	HandlerModule string `gorm:"column:handlermodule;size:255"`
	Action        string `gorm:"size:1024"`
	Data          string
}

func (eventRow) TableName() string { return "eventhandler" }

type eventCounterRow struct {
	ID           int64  `gorm:"primaryKey"`
	CounterName  string `gorm:"uniqueIndex;size:80"`
	CounterValue int64
}

func (eventCounterRow) TableName() string { return "eventcounter" }
