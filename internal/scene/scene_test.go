package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/store"
)

type fakeRooms struct {
	docs     map[string]*document.SceneData
	reloaded []string
	closed   []string
}

func (f *fakeRooms) Document(id string) (*document.SceneData, bool) {
	d, ok := f.docs[id]
	return d, ok
}

func (f *fakeRooms) Reload(id string, data *document.SceneData) bool {
	f.reloaded = append(f.reloaded, id)
	return true
}

func (f *fakeRooms) CloseRoom(id, reason string) bool {
	f.closed = append(f.closed, id)
	return true
}

type fakeTokens struct{}

func (fakeTokens) IssueSceneToken(id string) (string, error) { return "token-" + id, nil }

func newTestService(t *testing.T) (*Service, *fakeRooms) {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "scenes.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewService(st, 800, 600)
	rooms := &fakeRooms{docs: map[string]*document.SceneData{}}
	svc.SetLive(rooms)
	return svc, rooms
}

func TestCreateDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sc, err := svc.Create(ctx, CreateParams{Name: " demo "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sc.Name != "demo" || sc.Width != 800 || sc.Height != 600 {
		t.Errorf("scene = %+v", sc)
	}

	data, err := svc.Document(ctx, sc.ID)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if len(data.Elements) != 0 || data.Duration != document.DefaultDurationMs {
		t.Errorf("initial document = %+v", data)
	}
}

func TestCreateSample(t *testing.T) {
	svc, _ := newTestService(t)
	sc, err := svc.Create(context.Background(), CreateParams{Name: "s", Sample: true})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := svc.Document(context.Background(), sc.ID)
	if len(data.Elements) != 3 {
		t.Errorf("elements = %d, want 3", len(data.Elements))
	}
}

func TestCreateInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	for _, p := range []CreateParams{
		{Name: ""},
		{Name: "x", Width: -1},
		{Name: "x", Width: MaxCanvasSize + 1},
	} {
		if _, err := svc.Create(context.Background(), p); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Create(%+v) err = %v, want ErrInvalidRequest", p, err)
		}
	}
}

func TestDocumentPrefersLiveRoom(t *testing.T) {
	svc, rooms := newTestService(t)
	sc, _ := svc.Create(context.Background(), CreateParams{Name: "live"})
	live := &document.SceneData{Elements: []document.Element{{ID: "x"}}, Duration: 5000}
	rooms.docs[sc.ID] = live

	data, err := svc.Document(context.Background(), sc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if data != live {
		t.Errorf("Document = %+v, want the live room's scene", data)
	}
}

func TestImport(t *testing.T) {
	svc, rooms := newTestService(t)
	ctx := context.Background()
	sc, _ := svc.Create(ctx, CreateParams{Name: "imp"})

	raw := []byte(`{"elements":[{"id":"a","x":1,"y":2,"width":30,"height":40,"color":"#abcdef","rotation":0.5}],"duration":2000}`)
	if _, err := svc.Import(ctx, sc.ID, raw); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(rooms.reloaded) != 1 || rooms.reloaded[0] != sc.ID {
		t.Errorf("reloaded = %v", rooms.reloaded)
	}

	data, _ := svc.Document(ctx, sc.ID)
	if len(data.Elements) != 1 || data.Elements[0].Color != "#abcdef" || data.Duration != 2000 {
		t.Errorf("document = %+v", data)
	}

	if _, err := svc.Import(ctx, sc.ID, []byte(`{"elements":[]}`)); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("invalid import err = %v", err)
	}
	data, _ = svc.Document(ctx, sc.ID)
	if len(data.Elements) != 1 {
		t.Error("invalid import should leave the scene unchanged")
	}

	if _, err := svc.Import(ctx, "scene_missing", raw); !errors.Is(err, ErrNotFound) {
		t.Errorf("import into missing scene err = %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, rooms := newTestService(t)
	ctx := context.Background()
	sc, _ := svc.Create(ctx, CreateParams{Name: "del"})

	if err := svc.Delete(ctx, sc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(rooms.closed) != 1 {
		t.Errorf("closed rooms = %v", rooms.closed)
	}
	if _, err := svc.Get(ctx, sc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if err := svc.Delete(ctx, sc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
}

func newTestRouter(t *testing.T) *mux.Router {
	svc, _ := newTestService(t)
	h := NewHandler(svc, fakeTokens{})
	r := mux.NewRouter()
	r.HandleFunc("/api/scenes", h.Create).Methods("POST")
	r.HandleFunc("/api/scenes/{sceneId}", h.Get).Methods("GET")
	r.HandleFunc("/api/scenes/{sceneId}", h.Delete).Methods("DELETE")
	r.HandleFunc("/api/scenes/{sceneId}/document", h.GetDocument).Methods("GET")
	r.HandleFunc("/api/scenes/{sceneId}/document", h.PutDocument).Methods("PUT")
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlers(t *testing.T) {
	r := newTestRouter(t)

	rec := do(r, http.MethodPost, "/api/scenes", `{"name":"web","width":640,"height":480}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	var created createResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	id := created.Scene.ID
	if created.Token != "token-"+id {
		t.Errorf("token = %q", created.Token)
	}

	if rec := do(r, http.MethodGet, "/api/scenes/"+id, ""); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	doc := `{"elements":[{"id":"a","x":0,"y":0,"width":20,"height":20,"color":"#000000","rotation":0}],"duration":1500}`
	if rec := do(r, http.MethodPut, "/api/scenes/"+id+"/document", doc); rec.Code != http.StatusOK {
		t.Errorf("put status = %d: %s", rec.Code, rec.Body)
	}
	if rec := do(r, http.MethodPut, "/api/scenes/"+id+"/document", `[1,2]`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid put status = %d", rec.Code)
	}

	rec = do(r, http.MethodGet, "/api/scenes/"+id+"/document?download=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get document status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "attachment") {
		t.Error("download should be an attachment")
	}
	data, err := document.Decode(bytes.TrimSpace(rec.Body.Bytes()))
	if err != nil || len(data.Elements) != 1 || data.Duration != 1500 {
		t.Errorf("document = %+v, err = %v", data, err)
	}

	if rec := do(r, http.MethodDelete, "/api/scenes/"+id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/scenes/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestCreateHandlerRejects(t *testing.T) {
	r := newTestRouter(t)
	if rec := do(r, http.MethodPost, "/api/scenes", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/scenes", `{"name":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing name status = %d", rec.Code)
	}
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc, _ := newTestService(t)
	for _, id := range []string{"", "desktop", "elem_01h455vb4pex5vsknk084sn02q"} {
		if _, err := svc.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) err = %v, want ErrNotFound", id, err)
		}
	}
}
