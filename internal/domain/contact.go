package domain

// Contact is a protocol user observed by the bridge, keyed by its stable
// protocol id. Created lazily on first observation; profile fields are never
// rewritten afterwards, only relationship edges change.
type Contact struct {
	PUID       string `gorm:"column:puid;type:text;primaryKey" json:"puid"`
	Name       string `gorm:"type:text" json:"name"`
	NickName   string `gorm:"type:text" json:"nickName"`
	UserName   string `gorm:"type:text" json:"userName"`
	RemarkName string `gorm:"type:text" json:"remarkName"`
	Avatar     string `gorm:"type:text" json:"avatar"` // blob name, empty until fetched
	Signature  string `gorm:"type:text" json:"signature"`
	Sex        int    `json:"sex"`
	Province   string `gorm:"type:text" json:"province"`
	City       string `gorm:"type:text" json:"city"`

	Friends []*Contact `gorm:"many2many:contact_friends;joinForeignKey:OwnerPUID;joinReferences:FriendPUID" json:"-"`
}

func (Contact) TableName() string { return "contacts" }

// Group is a protocol chat group. Members are shared Contact rows.
type Group struct {
	PUID      string  `gorm:"column:puid;type:text;primaryKey" json:"puid"`
	Name      string  `gorm:"type:text" json:"name"`
	NickName  string  `gorm:"type:text" json:"nickName"`
	UserName  string  `gorm:"type:text" json:"userName"`
	Avatar    string  `gorm:"type:text" json:"avatar"`
	OwnerPUID *string `gorm:"column:owner_puid;type:text" json:"ownerPuid"`

	Members []*Contact `gorm:"many2many:group_members" json:"-"`
}

func (Group) TableName() string { return "groups" }

// Channel is a broadcast/public account.
type Channel struct {
	PUID      string  `gorm:"column:puid;type:text;primaryKey" json:"puid"`
	Name      string  `gorm:"type:text" json:"name"`
	NickName  string  `gorm:"type:text" json:"nickName"`
	Signature string  `gorm:"type:text" json:"signature"`
	Province  string  `gorm:"type:text" json:"province"`
	City      string  `gorm:"type:text" json:"city"`
	OwnerPUID *string `gorm:"column:owner_puid;type:text" json:"ownerPuid"`
}

func (Channel) TableName() string { return "channels" }
