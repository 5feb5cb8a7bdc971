// Package passworktest runs an in-process fake of the Passwork API for tests.
//
// The fake implements the endpoints used by package passwork: vault types,
// vault creation, link creation, snapshots, snapshot attachments and token
// refresh. It keeps everything in memory and records every request.
package passworktest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/animalet/passwork-go/pkg/passwork"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Request is one recorded call.
type Request struct {
	Method        string
	Path          string
	Authorization string
	Body          map[string]any
}

// Vault is a vault created through the fake.
type Vault struct {
	ID           string
	Name         string
	TypeID       string
	EncryptedKey string
}

// Attachment is the server-side content of an attachment.
type Attachment struct {
	Name          string
	Data          string
	EncryptedData string
}

// Server is the fake Passwork API.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expired      bool
	refreshes    int
	vaultTypes   []passwork.VaultType
	vaults       []Vault
	links        []passwork.Link
	snapshots    map[string]passwork.Snapshot
	attachments  map[string]Attachment
	requests     []Request
	failures     map[string]int
}

// NewServer starts a fake accepting accessToken and, for refreshes, refreshToken.
// It is closed when the test ends.
func NewServer(t interface{ Cleanup(func()) }, accessToken, refreshToken string) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		accessToken:  accessToken,
		refreshToken: refreshToken,
		snapshots:    make(map[string]passwork.Snapshot),
		attachments:  make(map[string]Attachment),
		failures:     make(map[string]int),
	}

	engine := gin.New()
	api := engine.Group("/api/v1", s.record)
	api.POST("/sessions/refresh", s.handleRefresh)

	authed := api.Group("", s.authenticate)
	authed.GET("/vaults/types", s.handleVaultTypes)
	authed.POST("/vaults", s.handleCreateVault)
	authed.POST("/links", s.handleCreateLink)
	authed.GET("/items/:itemId/snapshots/:snapshotId", s.handleSnapshot)
	authed.GET("/items/:itemId/snapshots/:snapshotId/attachments/:attachmentId", s.handleAttachment)

	s.Server = httptest.NewServer(engine)
	t.Cleanup(s.Close)
	return s
}

// NewID returns a fresh object id.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// AddVaultType registers a vault type and returns its id.
func (s *Server) AddVaultType(code, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := NewID()
	s.vaultTypes = append(s.vaultTypes, passwork.VaultType{ID: id, Code: code, Name: name})
	return id
}

// AddSnapshot stores a snapshot as the server would return it (encrypted
// fields included).
func (s *Server) AddSnapshot(snapshot passwork.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.ItemID+"/"+snapshot.ID] = snapshot
}

// AddAttachment stores attachment content under its id.
func (s *Server) AddAttachment(id string, attachment Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[id] = attachment
}

// ExpireAccessToken makes the current access token fail with accessTokenExpired
// until a refresh happens.
func (s *Server) ExpireAccessToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = true
}

// FailNext makes the next n requests to path answer with a 500.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = n
}

// AccessToken returns the token currently accepted.
func (s *Server) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// RefreshToken returns the refresh token currently accepted.
func (s *Server) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// Refreshes counts successful token refreshes.
func (s *Server) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Vaults returns the vaults created so far.
func (s *Server) Vaults() []Vault {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Vault(nil), s.vaults...)
}

// Links returns the links created so far.
func (s *Server) Links() []passwork.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]passwork.Link(nil), s.links...)
}

// Requests returns every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) record(c *gin.Context) {
	req := Request{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Authorization: c.GetHeader("Authorization"),
	}
	if c.Request.ContentLength != 0 && c.Request.Body != nil {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": "badRequest", "message": err.Error()})
			return
		}
		req.Body = body
		c.Set("body", body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	remaining := s.failures[req.Path]
	if remaining > 0 {
		s.failures[req.Path] = remaining - 1
	}
	s.mu.Unlock()

	if remaining > 0 {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": "internalError", "message": "injected failure"})
		return
	}
	c.Next()
}

func (s *Server) authenticate(c *gin.Context) {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")

	s.mu.Lock()
	valid := found && token == s.accessToken
	expired := s.expired
	s.mu.Unlock()

	switch {
	case !valid:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "invalidAccessToken", "message": "Invalid access token"})
	case expired:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": passwork.CodeAccessTokenExpired, "message": "Access token expired"})
	default:
		c.Next()
	}
}

func body(c *gin.Context) map[string]any {
	if v, ok := c.Get("body"); ok {
		return v.(map[string]any)
	}
	return map[string]any{}
}

func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" || str(body(c), "refreshToken") != s.refreshToken {
		c.JSON(http.StatusUnauthorized, gin.H{"code": passwork.CodeRefreshTokenExpired, "message": "Refresh token expired"})
		return
	}

	s.refreshes++
	s.accessToken = "access-" + NewID()
	s.refreshToken = "refresh-" + NewID()
	s.expired = false
	c.JSON(http.StatusOK, passwork.Tokens{
		AccessToken:          s.accessToken,
		RefreshToken:         s.refreshToken,
		AccessTokenExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	})
}

func (s *Server) handleVaultTypes(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := append([]passwork.VaultType{}, s.vaultTypes...)
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleCreateVault(c *gin.Context) {
	in := body(c)
	name := str(in, "name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "validationError", "message": "name is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	typeID := str(in, "typeId")
	if typeID != "" && !s.hasVaultType(typeID) {
		c.JSON(http.StatusNotFound, gin.H{"code": passwork.CodeNotFound, "message": "Vault type not found"})
		return
	}
	vault := Vault{ID: NewID(), Name: name, TypeID: typeID, EncryptedKey: str(in, "encryptedKey")}
	s.vaults = append(s.vaults, vault)
	c.JSON(http.StatusCreated, gin.H{"id": vault.ID})
}

func (s *Server) hasVaultType(id string) bool {
	for _, vt := range s.vaultTypes {
		if vt.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) handleCreateLink(c *gin.Context) {
	in := body(c)
	link := passwork.Link{
		ID:         NewID(),
		Type:       passwork.LinkType(str(in, "type")),
		Expiration: passwork.LinkExpirationTime(str(in, "expiration")),
		ItemID:     str(in, "itemId"),
		ShortcutID: str(in, "shortcutId"),
	}
	link.URL = s.URL + "/link/" + link.ID

	s.mu.Lock()
	s.links = append(s.links, link)
	s.mu.Unlock()
	c.JSON(http.StatusCreated, link)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	s.mu.Lock()
	snapshot, ok := s.snapshots[c.Param("itemId")+"/"+c.Param("snapshotId")]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": passwork.CodeNotFound, "message": "Snapshot not found"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleAttachment(c *gin.Context) {
	s.mu.Lock()
	attachment, ok := s.attachments[c.Param("attachmentId")]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": passwork.CodeNotFound, "message": "Attachment not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            c.Param("attachmentId"),
		"name":          attachment.Name,
		"data":          attachment.Data,
		"encryptedData": attachment.EncryptedData,
	})
}
