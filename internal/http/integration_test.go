package http

import (
	"bytes"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ama13/bookshelf/internal/auth"
	"github.com/ama13/bookshelf/internal/config"
	coverstore "github.com/ama13/bookshelf/internal/covers"
	"github.com/ama13/bookshelf/internal/database"
	"github.com/ama13/bookshelf/internal/database/audit"
	"github.com/ama13/bookshelf/internal/database/books"
	coversdb "github.com/ama13/bookshelf/internal/database/covers"
	"github.com/ama13/bookshelf/internal/database/collections"
	"github.com/ama13/bookshelf/internal/database/reviews"
	"github.com/ama13/bookshelf/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// pngBytes is a minimal payload that sniffs as image/png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 64)...)

type testApp struct {
	server  *httptest.Server
	db      *database.Database
	store   *coverstore.Store
	service *auth.Service

	books       *books.Repository
	covers      *coversdb.Repository
	reviews     *reviews.Repository
	collections *collections.Repository
	audit       *audit.Repository
}

// newTestApp runs without CSRF so most test forms don't need to scrape
// tokens; the CSRF-enabled path has its own tests below.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithCSRF(t, nil)
}

func newTestAppWithCSRF(t *testing.T, csrfSecret []byte) *testApp {
	t.Helper()

	dbPath := "./test_http_" + t.Name() + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	store, err := coverstore.NewStore(t.TempDir())
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	authCfg := config.Auth{
		SessionLifetime: time.Hour,
		RememberFor:     24 * time.Hour,
		BcryptCost:      bcrypt.MinCost,
	}

	sessionManager, err := auth.NewSessionManager(sqlDB, authCfg)
	require.NoError(t, err)

	service := auth.NewService(db, authCfg)
	auditor := audit.NewRepository(db.DB)
	authController := auth.NewController(service, sessionManager, auditor, authCfg)
	t.Cleanup(authController.Stop)

	router := NewRouter(RouterConfig{
		Database:       db,
		SessionManager: sessionManager,
		AuthService:    service,
		AuthController: authController,
		CoverStore:     store,
		CSRFSecret:     csrfSecret,
		SecureCookies:  false,
		TemplatesPath:  "../../templates",
		StaticPath:     "../../static",
		Version:        "test",
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		server:      server,
		db:          db,
		store:       store,
		service:     service,
		books:       books.NewRepository(db.DB),
		covers:      coversdb.NewRepository(db.DB),
		reviews:     reviews.NewRepository(db.DB),
		collections: collections.NewRepository(db.DB),
		audit:       auditor,
	}
}

// newClient returns an http client with its own cookie jar, i.e. its own
// browser session.
func (app *testApp) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (app *testApp) createUser(t *testing.T, login string, role entities.RoleName) *entities.User {
	t.Helper()
	user, err := app.service.CreateUser(login, "password12345", "Test", "User", "", role)
	require.NoError(t, err)
	return user
}

// loginAs signs a fresh client in and asserts the login stuck.
func (app *testApp) loginAs(t *testing.T, login string) *http.Client {
	t.Helper()
	client := app.newClient(t)

	resp, err := client.PostForm(app.server.URL+"/auth/login", url.Values{
		"login":    {login},
		"password": {"password12345"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)

	require.Equal(t, "/", resp.Request.URL.Path)
	require.Contains(t, body, "You are now logged in")
	return client
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func (app *testApp) genreID(t *testing.T, name string) uint {
	t.Helper()
	var genre entities.Genre
	require.NoError(t, app.db.DB.Where("name = ?", name).First(&genre).Error)
	return genre.ID
}

// postBookForm submits the add-book form as multipart, optionally attaching
// a cover file.
func (app *testApp) postBookForm(t *testing.T, client *http.Client, title string, genreID uint, cover []byte, coverName string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", title))
	require.NoError(t, w.WriteField("author", "Test Author"))
	require.NoError(t, w.WriteField("publisher", "Test House"))
	require.NoError(t, w.WriteField("year", "2020"))
	require.NoError(t, w.WriteField("pages", "200"))
	require.NoError(t, w.WriteField("description", "A **bold** description"))
	require.NoError(t, w.WriteField("genres", strconv.FormatUint(uint64(genreID), 10)))
	if cover != nil {
		part, err := w.CreateFormFile("cover", coverName)
		require.NoError(t, err)
		_, err = part.Write(cover)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	resp, err := client.Post(app.server.URL+"/add_book", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func TestAnonymousIsRedirectedToLogin(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient(t)

	resp, err := client.Get(app.server.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, "/auth/login", resp.Request.URL.Path)
	assert.Equal(t, "/", resp.Request.URL.Query().Get("next"))
	assert.Contains(t, body, "Log in")
}

func TestPingIsPublic(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient(t)

	resp, err := client.Get(app.server.URL + "/ping")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "pong")
}

func TestHealthReportsDatabase(t *testing.T) {
	app := newTestApp(t)
	client := app.newClient(t)

	resp, err := client.Get(app.server.URL + "/health")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status": "healthy"`)
	assert.Contains(t, body, `"database": "ok"`)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "reader", entities.RoleMember)
	client := app.newClient(t)

	resp, err := client.PostForm(app.server.URL+"/auth/login", url.Values{
		"login":    {"reader"},
		"password": {"wrongpassword"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Contains(t, body, "Invalid login or password")

	// Unknown accounts get the exact same message.
	resp, err = client.PostForm(app.server.URL+"/auth/login", url.Values{
		"login":    {"ghost"},
		"password": {"password12345"},
	})
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "Invalid login or password")
}

func TestLogoutEndsSession(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "reader", entities.RoleMember)
	client := app.loginAs(t, "reader")

	resp, err := client.Get(app.server.URL + "/auth/logout")
	require.NoError(t, err)
	readBody(t, resp)

	resp, err = client.Get(app.server.URL + "/")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, "/auth/login", resp.Request.URL.Path)
}

func TestMemberCannotAddBooks(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "reader", entities.RoleMember)
	client := app.loginAs(t, "reader")

	resp, err := client.Get(app.server.URL + "/add_book")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, body, "Insufficient permissions")

	resp = app.postBookForm(t, client, "Sneaky", app.genreID(t, "Fantasy"), nil, "")
	body = readBody(t, resp)
	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, body, "Insufficient permissions")

	count, err := app.books.ListPage(1)
	require.NoError(t, err)
	assert.Zero(t, count.Total)
}

func TestModeratorCanEditButNotDelete(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "moder", entities.RoleModerator)
	client := app.loginAs(t, "moder")

	book := &entities.Book{Title: "Editable", Author: "A", Year: 2000}
	require.NoError(t, app.books.CreateWithGenres(book, nil))
	bookID := strconv.FormatUint(uint64(book.ID), 10)

	resp, err := client.Get(app.server.URL + "/edit_book/" + bookID)
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, "/edit_book/"+bookID, resp.Request.URL.Path)
	assert.Contains(t, body, "Editable")

	resp, err = client.PostForm(app.server.URL+"/delete_book/"+bookID, url.Values{})
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Contains(t, body, "Insufficient permissions")

	_, err = app.books.GetByID(book.ID)
	assert.NoError(t, err, "book must survive a forbidden delete")
}

func TestAdminAddsBookWithCover(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "boss", entities.RoleAdmin)
	client := app.loginAs(t, "boss")

	resp := app.postBookForm(t, client, "Covered", app.genreID(t, "Fantasy"), pngBytes, "my cover.png")
	body := readBody(t, resp)

	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, body, "Book added")
	assert.Contains(t, body, "Covered")

	page, err := app.books.ListPage(1)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, "Fantasy", page.Books[0].Genres)

	// The file lands under its sanitized name.
	assert.True(t, app.store.Exists("my_cover.png"))
}

func TestDuplicateCoverIsDeduplicated(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "boss", entities.RoleAdmin)
	client := app.loginAs(t, "boss")
	genreID := app.genreID(t, "History")

	resp := app.postBookForm(t, client, "First Copy", genreID, pngBytes, "first.png")
	readBody(t, resp)
	resp = app.postBookForm(t, client, "Second Copy", genreID, pngBytes, "second.png")
	readBody(t, resp)

	// Same bytes: one cover row, one file, both books pointing at it.
	var coverCount int64
	require.NoError(t, app.db.DB.Model(&entities.Cover{}).Count(&coverCount).Error)
	assert.Equal(t, int64(1), coverCount)

	files, err := app.store.List()
	require.NoError(t, err)
	assert.Len(t, files, 1)

	var bookRows []entities.Book
	require.NoError(t, app.db.DB.Find(&bookRows).Error)
	require.Len(t, bookRows, 2)
	require.NotNil(t, bookRows[0].CoverID)
	require.NotNil(t, bookRows[1].CoverID)
	assert.Equal(t, *bookRows[0].CoverID, *bookRows[1].CoverID)
}

func TestEditFailureReRendersForm(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "boss", entities.RoleAdmin)
	client := app.loginAs(t, "boss")

	book := &entities.Book{Title: "Original", Author: "A", Year: 2000}
	require.NoError(t, app.books.CreateWithGenres(book, nil))
	bookID := strconv.FormatUint(uint64(book.ID), 10)

	resp, err := client.PostForm(app.server.URL+"/edit_book/"+bookID, url.Values{
		"title":     {"Broken Update"},
		"author":    {"A"},
		"publisher": {"P"},
		"year":      {"2001"},
		"pages":     {"10"},
		"genres":    {"99999"}, // unknown genre forces a storage failure
	})
	require.NoError(t, err)
	body := readBody(t, resp)

	// No redirect: the form comes back with the submitted values and the
	// error inline.
	assert.Equal(t, "/edit_book/"+bookID, resp.Request.URL.Path)
	assert.Contains(t, body, "Failed to save the book")
	assert.Contains(t, body, "Broken Update")

	got, err := app.books.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
}

func TestDeleteRemovesBookAndCoverFile(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "boss", entities.RoleAdmin)
	client := app.loginAs(t, "boss")

	resp := app.postBookForm(t, client, "Doomed", app.genreID(t, "Poetry"), pngBytes, "doomed.png")
	readBody(t, resp)

	var book entities.Book
	require.NoError(t, app.db.DB.Where("title = ?", "Doomed").First(&book).Error)
	require.NoError(t, app.reviews.Create(&entities.Review{BookID: book.ID, UserID: admin.ID, Rating: 5, Text: "bye"}))
	require.True(t, app.store.Exists("doomed.png"))

	resp, err := client.PostForm(app.server.URL+"/delete_book/"+strconv.FormatUint(uint64(book.ID), 10), url.Values{})
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, "Book deleted")

	_, err = app.books.GetByID(book.ID)
	assert.ErrorIs(t, err, books.ErrNotFound)

	reviewCount, err := app.reviews.CountForBook(book.ID)
	require.NoError(t, err)
	assert.Zero(t, reviewCount)

	// Last reference gone: row and file are reclaimed.
	var coverCount int64
	require.NoError(t, app.db.DB.Model(&entities.Cover{}).Count(&coverCount).Error)
	assert.Zero(t, coverCount)
	assert.False(t, app.store.Exists("doomed.png"))
}

func TestDeleteKeepsSharedCover(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "boss", entities.RoleAdmin)
	client := app.loginAs(t, "boss")
	genreID := app.genreID(t, "History")

	resp := app.postBookForm(t, client, "Keeper", genreID, pngBytes, "shared.png")
	readBody(t, resp)
	resp = app.postBookForm(t, client, "Goner", genreID, pngBytes, "shared2.png")
	readBody(t, resp)

	var goner entities.Book
	require.NoError(t, app.db.DB.Where("title = ?", "Goner").First(&goner).Error)

	resp, err := client.PostForm(app.server.URL+"/delete_book/"+strconv.FormatUint(uint64(goner.ID), 10), url.Values{})
	require.NoError(t, err)
	readBody(t, resp)

	// The other book still references the cover, so it stays.
	var coverCount int64
	require.NoError(t, app.db.DB.Model(&entities.Cover{}).Count(&coverCount).Error)
	assert.Equal(t, int64(1), coverCount)

	files, err := app.store.List()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestReviewLifecycle(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "reader", entities.RoleMember)
	client := app.loginAs(t, "reader")

	book := &entities.Book{Title: "Discussed", Author: "A", Year: 2000}
	require.NoError(t, app.books.CreateWithGenres(book, nil))
	bookID := strconv.FormatUint(uint64(book.ID), 10)

	resp, err := client.PostForm(app.server.URL+"/add_review/"+bookID, url.Values{
		"rating": {"4"},
		"text":   {"Pretty *good* overall"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, "/view_book/"+bookID, resp.Request.URL.Path)
	assert.Contains(t, body, "Review added")
	assert.Contains(t, body, "Your review")
	assert.Contains(t, body, "<em>good</em>")

	// The form bounces a second visit.
	resp, err = client.Get(app.server.URL + "/add_review/" + bookID)
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, "/view_book/"+bookID, resp.Request.URL.Path)
	assert.Contains(t, body, "You have already reviewed this book")

	// And a direct re-submit hits the unique index, not a second row.
	resp, err = client.PostForm(app.server.URL+"/add_review/"+bookID, url.Values{
		"rating": {"1"},
		"text":   {"changed my mind"},
	})
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Contains(t, body, "You have already reviewed this book")

	count, err := app.reviews.CountForBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The catalog picks up the rating aggregate.
	resp, err = client.Get(app.server.URL + "/")
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Contains(t, body, "4.0")
}

func TestReviewTextIsSanitized(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "reader", entities.RoleMember)
	client := app.loginAs(t, "reader")

	book := &entities.Book{Title: "Targeted", Author: "A", Year: 2000}
	require.NoError(t, app.books.CreateWithGenres(book, nil))
	bookID := strconv.FormatUint(uint64(book.ID), 10)

	resp, err := client.PostForm(app.server.URL+"/add_review/"+bookID, url.Values{
		"rating": {"3"},
		"text":   {`<script>alert("xss")</script>fine text`},
	})
	require.NoError(t, err)
	readBody(t, resp)

	review, err := app.reviews.ForBookAndUser(book.ID, user.ID)
	require.NoError(t, err)
	assert.NotContains(t, review.Text, "<script>")
	assert.Contains(t, review.Text, "fine text")
}

func TestCollectionsAreOwnerOnly(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "owner", entities.RoleMember)
	app.createUser(t, "other", entities.RoleMember)
	app.createUser(t, "boss", entities.RoleAdmin)

	ownerClient := app.loginAs(t, "owner")

	resp, err := ownerClient.PostForm(app.server.URL+"/collections", url.Values{
		"name": {"Weekend reading"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, "Collection created")
	assert.Contains(t, body, "Weekend reading")

	var collection entities.Collection
	require.NoError(t, app.db.DB.Where("name = ?", "Weekend reading").First(&collection).Error)
	collectionURL := app.server.URL + "/collection/" + strconv.FormatUint(uint64(collection.ID), 10)

	resp, err = ownerClient.Get(collectionURL)
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Contains(t, body, "Weekend reading")

	for _, login := range []string{"other", "boss"} {
		client := app.loginAs(t, login)
		resp, err := client.Get(collectionURL)
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, "/", resp.Request.URL.Path, "%s should be bounced", login)
		assert.Contains(t, body, "Insufficient permissions")
	}
}

func TestAddToCollectionIsIdempotent(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser(t, "owner", entities.RoleMember)
	client := app.loginAs(t, "owner")

	book := &entities.Book{Title: "Collected", Author: "A", Year: 2000}
	require.NoError(t, app.books.CreateWithGenres(book, nil))
	collection, err := app.collections.Create("Shelf", user.ID)
	require.NoError(t, err)

	form := url.Values{"collection_id": {strconv.FormatUint(uint64(collection.ID), 10)}}
	target := app.server.URL + "/add_to_collection/" + strconv.FormatUint(uint64(book.ID), 10)

	resp, err := client.PostForm(target, form)
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, "Book added to the collection")

	resp, err = client.PostForm(target, form)
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Contains(t, body, "already in this collection")

	items, err := app.collections.ForUser(user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].BookCount)
}

func TestCreateEmptyCollectionFlashes(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "owner", entities.RoleMember)
	client := app.loginAs(t, "owner")

	resp, err := client.PostForm(app.server.URL+"/collections", url.Values{"name": {"   "}})
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, "/collections", resp.Request.URL.Path)
	assert.Contains(t, body, "Collection name is required")
}

func TestViewBookRendersMarkdownDescription(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "boss", entities.RoleAdmin)
	client := app.loginAs(t, "boss")

	resp := app.postBookForm(t, client, "Formatted", app.genreID(t, "Fiction"), nil, "")
	readBody(t, resp)

	var book entities.Book
	require.NoError(t, app.db.DB.Where("title = ?", "Formatted").First(&book).Error)

	resp, err := client.Get(app.server.URL + "/view_book/" + strconv.FormatUint(uint64(book.ID), 10))
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Contains(t, body, "<strong>bold</strong>")
}

func TestMissingBookRedirectsHome(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "reader", entities.RoleMember)
	client := app.loginAs(t, "reader")

	for _, path := range []string{"/view_book/99999", "/view_book/not-a-number", "/add_review/99999"} {
		resp, err := client.Get(app.server.URL + path)
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, "/", resp.Request.URL.Path, "path %s", path)
		assert.Contains(t, body, "Book not found")
	}
}

var csrfTokenPattern = regexp.MustCompile(`name="gorilla\.csrf\.Token" value="([^"]+)"`)

func scrapeCSRFToken(t *testing.T, body string) string {
	t.Helper()
	match := csrfTokenPattern.FindStringSubmatch(body)
	require.NotNil(t, match, "no token field in page")
	// html/template entity-escapes attribute values ('+' becomes &#43;);
	// browsers decode that before submitting, so the scraper must too.
	return html.UnescapeString(match[1])
}

// testCSRFSecret is 32 bytes, same length the entrypoint derives.
var testCSRFSecret = []byte("0123456789abcdef0123456789abcdef")

// loginWithToken performs the full browser dance: fetch the form, scrape the
// token, submit it back.
func (app *testApp) loginWithToken(t *testing.T, login string) *http.Client {
	t.Helper()
	client := app.newClient(t)

	resp, err := client.Get(app.server.URL + "/auth/login")
	require.NoError(t, err)
	token := scrapeCSRFToken(t, readBody(t, resp))

	resp, err = client.PostForm(app.server.URL+"/auth/login", url.Values{
		"login":              {login},
		"password":           {"password12345"},
		"next":               {"/"},
		"gorilla.csrf.Token": {token},
	})
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, "/", resp.Request.URL.Path)
	require.Contains(t, body, "You are now logged in")
	return client
}

func TestCSRFTokenlessLoginCreatesNoSession(t *testing.T) {
	app := newTestAppWithCSRF(t, testCSRFSecret)
	app.createUser(t, "sneaky", entities.RoleMember)
	client := app.newClient(t)

	resp, err := client.PostForm(app.server.URL+"/auth/login", url.Values{
		"login":    {"sneaky"},
		"password": {"password12345"},
	})
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The login handler never ran: nothing on the audit trail, no session.
	events, _, err := app.audit.GetEvents(0, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	resp, err = client.Get(app.server.URL + "/")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, "/auth/login", resp.Request.URL.Path)
}

func TestCSRFTokenlessDeleteKeepsTheBook(t *testing.T) {
	app := newTestAppWithCSRF(t, testCSRFSecret)
	app.createUser(t, "boss", entities.RoleAdmin)
	client := app.loginWithToken(t, "boss")

	book := &entities.Book{Title: "Protected", Author: "A", Year: 2000}
	require.NoError(t, app.books.CreateWithGenres(book, nil))
	bookID := strconv.FormatUint(uint64(book.ID), 10)

	resp, err := client.PostForm(app.server.URL+"/delete_book/"+bookID, url.Values{})
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = app.books.GetByID(book.ID)
	assert.NoError(t, err, "a rejected delete must not reach the handler")
}

func TestCSRFAcceptsPlainHTTPOrigin(t *testing.T) {
	app := newTestAppWithCSRF(t, testCSRFSecret)
	app.createUser(t, "plain", entities.RoleMember)
	client := app.newClient(t)

	resp, err := client.Get(app.server.URL + "/auth/login")
	require.NoError(t, err)
	token := scrapeCSRFToken(t, readBody(t, resp))

	form := url.Values{
		"login":              {"plain"},
		"password":           {"password12345"},
		"next":               {"/"},
		"gorilla.csrf.Token": {token},
	}
	req, err := http.NewRequest(http.MethodPost, app.server.URL+"/auth/login", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Browsers send the page's origin on form POSTs; without TLS that
	// origin carries the http scheme.
	req.Header.Set("Origin", app.server.URL)

	resp, err = client.Do(req)
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, body, "You are now logged in")
}

func TestLoginNextKeepsQueryString(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "wanderer", entities.RoleMember)
	client := app.newClient(t)

	resp, err := client.Get(app.server.URL + "/index?page=3")
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, "/auth/login", resp.Request.URL.Path)
	next := resp.Request.URL.Query().Get("next")
	assert.Equal(t, "/index?page=3", next)

	resp, err = client.PostForm(app.server.URL+"/auth/login", url.Values{
		"login":    {"wanderer"},
		"password": {"password12345"},
		"next":     {next},
	})
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, "/index", resp.Request.URL.Path)
	assert.Equal(t, "3", resp.Request.URL.Query().Get("page"))
}

func TestAuditTrailIsAdminOnly(t *testing.T) {
	app := newTestApp(t)
	app.createUser(t, "boss", entities.RoleAdmin)
	app.createUser(t, "pleb", entities.RoleMember)

	admin := app.loginAs(t, "boss")
	resp, err := admin.Get(app.server.URL + "/audit")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, "/audit", resp.Request.URL.Path)
	assert.Contains(t, body, "Audit trail")
	// The admin's own login is already on record.
	assert.Contains(t, body, "login")
	assert.Contains(t, body, "success")

	member := app.loginAs(t, "pleb")
	resp, err = member.Get(app.server.URL + "/audit")
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, body, "Insufficient permissions")
}
