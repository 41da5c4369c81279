package api

import (
	"github.com/gin-gonic/gin"
)

// invalidAppMessage is returned verbatim for any request whose
// ownerid/name pair resolves to nothing. It never leaks whether the
// owner exists, the name exists, or neither.
const invalidAppMessage = "HexAUTH_Invalid"

// unhandledTypeMessage is the catch-all for unknown operation tags
const unhandledTypeMessage = "Unhandled Type"

const ownerIDLength = 10

// clientRequest is the legacy wire request. Every field rides as a form
// or query parameter; the exact names are preserved for client
// compatibility.
type clientRequest struct {
	Type    string `form:"type"`
	OwnerID string `form:"ownerid"`
	Name    string `form:"name"`

	SessionID string `form:"sessionid"`
	Username  string `form:"username"`
	Pass      string `form:"pass"`
	Key       string `form:"key"`
	HWID      string `form:"hwid"`
	Email     string `form:"email"`

	Ver  string `form:"ver"`
	Hash string `form:"hash"`

	Message string `form:"message"`
	PCUser  string `form:"pcuser"`

	VarID string `form:"varid"`
	Var   string `form:"var"`
	Data  string `form:"data"`

	FileID    string `form:"fileid"`
	WebhookID string `form:"webid"`
	Params    string `form:"params"`

	Channel     string `form:"channel"`
	NewUsername string `form:"newUsername"`
	Reason      string `form:"reason"`

	// Enhanced-security transport: when Enc is set the response body is
	// AES-256-CBC encrypted hex instead of plain JSON. IV seeds the
	// response IV and must change per request.
	Enc string `form:"enc"`
	IV  string `form:"iv"`
}

func (r *clientRequest) encrypted() bool {
	return r.Enc == "1" || r.Enc == "true"
}

func parseClientRequest(c *gin.Context) (*clientRequest, error) {
	var req clientRequest
	if err := c.ShouldBind(&req); err != nil {
		return nil, err
	}
	// Query parameters fill anything the form body left empty
	var query clientRequest
	if err := c.ShouldBindQuery(&query); err == nil {
		mergeRequest(&req, &query)
	}
	return &req, nil
}

func mergeRequest(dst, src *clientRequest) {
	fill := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	fill(&dst.Type, src.Type)
	fill(&dst.OwnerID, src.OwnerID)
	fill(&dst.Name, src.Name)
	fill(&dst.SessionID, src.SessionID)
	fill(&dst.Username, src.Username)
	fill(&dst.Pass, src.Pass)
	fill(&dst.Key, src.Key)
	fill(&dst.HWID, src.HWID)
	fill(&dst.Email, src.Email)
	fill(&dst.Ver, src.Ver)
	fill(&dst.Hash, src.Hash)
	fill(&dst.Message, src.Message)
	fill(&dst.PCUser, src.PCUser)
	fill(&dst.VarID, src.VarID)
	fill(&dst.Var, src.Var)
	fill(&dst.Data, src.Data)
	fill(&dst.FileID, src.FileID)
	fill(&dst.WebhookID, src.WebhookID)
	fill(&dst.Params, src.Params)
	fill(&dst.Channel, src.Channel)
	fill(&dst.NewUsername, src.NewUsername)
	fill(&dst.Reason, src.Reason)
	fill(&dst.Enc, src.Enc)
	fill(&dst.IV, src.IV)
}

// subscriptionEntry is the legacy per-entitlement response shape
type subscriptionEntry struct {
	Subscription string `json:"subscription"`
	Key          string `json:"key,omitempty"`
	Expiry       int64  `json:"expiry"`
	TimeLeft     int64  `json:"timeleft"`
	Level        string `json:"level"`
}

// userInfo is the legacy user block returned by login-shaped operations
type userInfo struct {
	Username      string              `json:"username"`
	IP            string              `json:"ip,omitempty"`
	HWID          string              `json:"hwid,omitempty"`
	CreateDate    int64               `json:"createdate"`
	LastLogin     int64               `json:"lastlogin,omitempty"`
	Subscriptions []subscriptionEntry `json:"subscriptions"`
}

// appInfo is the metadata block returned by init
type appInfo struct {
	NumUsers          int    `json:"numUsers"`
	NumOnlineUsers    int    `json:"numOnlineUsers"`
	NumKeys           int    `json:"numKeys"`
	Version           string `json:"version"`
	CustomerPanelLink string `json:"customerPanelLink,omitempty"`
	DownloadLink      string `json:"downloadLink,omitempty"`
}

// chatEntry is one message in a chatget response
type chatEntry struct {
	Author    string `json:"author"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
