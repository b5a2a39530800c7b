package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"wholesale_catalog/internal/config"
	"wholesale_catalog/internal/images"
	"wholesale_catalog/internal/metrics"
	"wholesale_catalog/internal/middleware"
	"wholesale_catalog/internal/model"
	"wholesale_catalog/internal/repository"
	"wholesale_catalog/internal/store"
	rediskey "wholesale_catalog/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memSessions struct {
	tokens map[string]string
}

func (m *memSessions) Create(_ context.Context, username string) (rediskey.Session, error) {
	token := "tok-" + username
	m.tokens[token] = username
	return rediskey.Session{Token: token, Username: username, CreatedAt: time.Now()}, nil
}

func (m *memSessions) Lookup(_ context.Context, token string) (rediskey.Session, error) {
	name, found := m.tokens[token]
	if !found {
		return rediskey.Session{}, rediskey.ErrNoSession
	}
	return rediskey.Session{Token: token, Username: name}, nil
}

func (m *memSessions) Delete(_ context.Context, token string) error {
	delete(m.tokens, token)
	return nil
}

type testApp struct {
	engine   *gin.Engine
	products *repository.ProductRepository
	orders   *repository.OrderRepository
	fs       afero.Fs
	sessions *memSessions
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("secreto"), bcrypt.MinCost)
	require.NoError(t, err)

	app := &testApp{
		products: repository.NewProductRepository(db),
		orders:   repository.NewOrderRepository(db),
		fs:       afero.NewMemMapFs(),
		sessions: &memSessions{tokens: map[string]string{}},
	}
	cfg := config.AppConfig{
		WhatsAppNumber: "5491158573906",
		MinimumOrder:   decimal.NewFromInt(200000),
		StoreName:      "RM KITS",
		AdminUsers:     map[string]string{"admin": string(hash)},
		SessionTTL:     time.Hour,
		MaxUploadBytes: 1 << 20,
	}
	app.engine = gin.New()
	Setup(app.engine, Deps{
		Config:   cfg,
		Products: app.products,
		Orders:   app.orders,
		Images:   images.NewManager(app.fs),
		Sessions: app.sessions,
		Metrics:  metrics.New(),
	})
	return app
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

// asAdmin attaches a live session cookie.
func (a *testApp) asAdmin(req *http.Request) *http.Request {
	a.sessions.tokens["tok-admin"] = "admin"
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "tok-admin"})
	return req
}

func jsonRequest(method, target string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func productRequest(t *testing.T, fields map[string]string, imageName string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if imageName != "" {
		fw, err := mw.CreateFormFile("imagen", imageName)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/admin/producto", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func seed(t *testing.T, a *testApp, title string, stock int, active bool) *model.Product {
	t.Helper()
	p, err := a.products.Create(context.Background(), model.Product{
		Titulo: title, Precio: decimal.NewFromInt(1500), Minimo: 1, Multiplo: 1, Stock: stock, Activo: active,
	}, nil)
	require.NoError(t, err)
	return p
}

func TestPing(t *testing.T) {
	a := newTestApp(t)
	w := a.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestPublicCatalogShowsVisibleOnly(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, "Visible", 5, true)
	seed(t, a, "Sin stock", 0, true)
	seed(t, a, "Inactivo", 5, false)

	w := a.do(httptest.NewRequest(http.MethodGet, "/api/productos", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Productos []model.Product `json:"productos"`
		Whatsapp  string          `json:"whatsapp"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	require.Len(t, data.Productos, 1)
	assert.Equal(t, "Visible", data.Productos[0].Titulo)
	assert.Equal(t, "5491158573906", data.Whatsapp)
}

func TestCartPricesKeyedByCode(t *testing.T) {
	a := newTestApp(t)
	p := seed(t, a, "Kit", 0, true)
	seed(t, a, "Oculto", 3, false)
	inStock := seed(t, a, "Con stock", 2, true)

	w := a.do(httptest.NewRequest(http.MethodGet, "/api/carrito/precios", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var data map[string]cartEntry
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	require.Len(t, data, 2)
	assert.Equal(t, p.ID, data[p.Codigo].ID)
	assert.True(t, data[p.Codigo].Precio.Equal(decimal.NewFromInt(1500)))
	assert.False(t, data[p.Codigo].Disponible)
	assert.True(t, data[inStock.Codigo].Disponible)
}

func TestSendOrder(t *testing.T) {
	a := newTestApp(t)

	w := a.do(jsonRequest(http.MethodPost, "/enviar_pedido", gin.H{"total": 1000, "items": []gin.H{}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "El pedido debe superar los $200.000", decode(t, w).Msg)

	w = a.do(jsonRequest(http.MethodPost, "/enviar_pedido", gin.H{
		"total": 250000,
		"items": []gin.H{{"codigo": "A0001", "titulo": "Kit", "cantidad": 5, "precio": 50000}},
	}))
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		URL     string `json:"url"`
		Mensaje string `json:"mensaje"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.True(t, strings.HasPrefix(data.URL, "https://wa.me/5491158573906?text="))
	assert.Contains(t, data.Mensaje, "A0001 - Kit - Cantidad: 5 - Precio unitario: $50000")
	assert.True(t, strings.HasSuffix(data.Mensaje, "TOTAL: $250000"))

	req := httptest.NewRequest(http.MethodPost, "/enviar_pedido", strings.NewReader("no json"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, a.do(req).Code)
}

func TestSaveOrder(t *testing.T) {
	a := newTestApp(t)

	w := a.do(jsonRequest(http.MethodPost, "/guardar-pedido", gin.H{
		"nombre":          "Ana",
		"telefono":        "1155550000",
		"metodo_entrega":  "envio",
		"envio_localidad": "Quilmes",
		"productos":       []gin.H{{"codigo": "A0001", "cantidad": 2}},
		"total":           3000,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	list, err := a.orders.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].ClienteNombre)
	assert.Equal(t, "Quilmes", list[0].EnvioLocalidad)
	assert.Equal(t, model.OrderPending, list[0].Estado)
	assert.JSONEq(t, `[{"codigo":"A0001","cantidad":2}]`, list[0].Productos)

	w = a.do(jsonRequest(http.MethodPost, "/guardar-pedido", gin.H{"nombre": "", "total": 1}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProductsText(t *testing.T) {
	assert.Equal(t, `[1,2]`, productsText(json.RawMessage(`"[1,2]"`)))
	assert.Equal(t, `[1,2]`, productsText(json.RawMessage(`[1,2]`)))
	assert.Equal(t, "", productsText(nil))
	assert.Equal(t, "", productsText(json.RawMessage(`null`)))
}

func TestLoginLogout(t *testing.T) {
	a := newTestApp(t)

	form := url.Values{"username": {"admin"}, "password": {"mal"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := a.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Usuario o contraseña incorrectos", decode(t, w).Msg)

	form.Set("password", "secreto")
	req = httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = a.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var session *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == middleware.SessionCookie {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req = httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(session)
	w = a.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"usuario":"admin"`)

	req = httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	req.AddCookie(session)
	require.Equal(t, http.StatusOK, a.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(session)
	assert.Equal(t, http.StatusUnauthorized, a.do(req).Code)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	a := newTestApp(t)
	w := a.do(httptest.NewRequest(http.MethodPost, "/admin/pedidos/limpiar", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Debe iniciar sesión", decode(t, w).Msg)
}

func TestCreateProductWithImage(t *testing.T) {
	a := newTestApp(t)

	w := a.do(a.asAdmin(productRequest(t, map[string]string{
		"titulo":    "Kit Escolar",
		"precio":    "1250.50",
		"stock":     "10",
		"categoria": "  Librería ",
	}, "Foto.PNG")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p model.Product
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &p))
	assert.Equal(t, "A0001", p.Codigo)
	assert.Equal(t, "A0001.png", p.Imagen)
	assert.Equal(t, model.CategoryStationer, p.Categoria)
	assert.True(t, p.Activo)
	assert.Equal(t, 1, p.Minimo)

	exists, err := afero.Exists(a.fs, "A0001.png")
	require.NoError(t, err)
	assert.True(t, exists)

	w = a.do(httptest.NewRequest(http.MethodGet, "/img/A0001.png", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fake image bytes", w.Body.String())

	w = a.do(a.asAdmin(httptest.NewRequest(http.MethodGet, "/admin/codigo-siguiente", nil)))
	assert.Contains(t, w.Body.String(), `"codigo":"A0002"`)

	news, err := a.products.ListNew(context.Background())
	require.NoError(t, err)
	assert.Len(t, news, 1)
}

func TestCreateProductRejectsBadInput(t *testing.T) {
	a := newTestApp(t)

	w := a.do(a.asAdmin(productRequest(t, map[string]string{"titulo": "Kit"}, "doc.pdf")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, images.ErrUnsupportedType.Error(), decode(t, w).Msg)

	w = a.do(a.asAdmin(productRequest(t, map[string]string{"titulo": "Kit", "precio": "caro"}, "")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "precio inválido", decode(t, w).Msg)

	w = a.do(a.asAdmin(productRequest(t, map[string]string{"titulo": "", "precio": "10"}, "")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(a.asAdmin(productRequest(t, map[string]string{"titulo": "Kit", "precio": "10", "minimo": "0"}, "")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "el mínimo debe ser al menos 1", decode(t, w).Msg)

	all, err := a.products.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdateProductKeepsActiveAndSwapsImage(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, afero.WriteFile(a.fs, "A0001.jpg", []byte("old"), 0o644))
	p, err := a.products.Create(context.Background(), model.Product{
		Titulo: "Kit", Precio: decimal.NewFromInt(10), Minimo: 1, Multiplo: 1, Stock: 1, Activo: false, Imagen: "A0001.jpg",
	}, nil)
	require.NoError(t, err)

	req := productRequest(t, map[string]string{"titulo": "Kit nuevo", "precio": "20", "stock": "4"}, "nueva.png")
	req.URL.Path = "/admin/producto/" + jsonID(p.ID)
	w := a.do(a.asAdmin(req))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := a.products.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kit nuevo", got.Titulo)
	assert.False(t, got.Activo)
	assert.Equal(t, "A0001.png", got.Imagen)

	old, _ := afero.Exists(a.fs, "A0001.jpg")
	assert.False(t, old)
	fresh, _ := afero.Exists(a.fs, "A0001.png")
	assert.True(t, fresh)
}

func jsonID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestPriceToggleAndDelete(t *testing.T) {
	a := newTestApp(t)
	p := seed(t, a, "Kit", 3, true)
	ctx := context.Background()

	w := a.do(a.asAdmin(jsonRequest(http.MethodPost, "/admin/producto/actualizar-precio", gin.H{"producto_id": p.ID, "precio": 99.5})))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(a.asAdmin(jsonRequest(http.MethodPost, "/admin/producto/toggle-activo", gin.H{"producto_id": p.ID, "activo": 0})))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := a.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Precio.Equal(decimal.RequireFromString("99.5")))
	assert.False(t, got.Activo)

	w = a.do(a.asAdmin(jsonRequest(http.MethodPost, "/admin/producto/actualizar-precio", gin.H{"producto_id": p.ID, "precio": -1})))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(a.asAdmin(jsonRequest(http.MethodPost, "/admin/producto/actualizar-precio", gin.H{"producto_id": p.ID})))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No se recibieron datos", decode(t, w).Msg)
	got, err = a.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Precio.Equal(decimal.RequireFromString("99.5")), "price must survive a body without precio")

	w = a.do(a.asAdmin(httptest.NewRequest(http.MethodPost, "/admin/producto/"+jsonID(p.ID)+"/eliminar", nil)))
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(a.asAdmin(httptest.NewRequest(http.MethodPost, "/admin/producto/"+jsonID(p.ID)+"/eliminar", nil)))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Producto no encontrado", decode(t, w).Msg)

	w = a.do(a.asAdmin(httptest.NewRequest(http.MethodGet, "/admin/producto/abc", nil)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLooseBool(t *testing.T) {
	for in, want := range map[string]bool{`true`: true, `1`: true, `"1"`: true, `false`: false, `0`: false} {
		var b looseBool
		require.NoError(t, json.Unmarshal([]byte(in), &b), in)
		assert.Equal(t, want, bool(b), in)
	}
	var b looseBool
	assert.Error(t, json.Unmarshal([]byte(`"quizas"`), &b))
}

func TestOrderAdmin(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	o := &model.Order{ClienteNombre: "Ana", Productos: "[]", Total: decimal.NewFromInt(10)}
	require.NoError(t, a.orders.Create(ctx, o))

	w := a.do(a.asAdmin(jsonRequest(http.MethodPost, "/admin/pedido/"+jsonID(o.ID)+"/estado", gin.H{"estado": "completado"})))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated model.Order
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &updated))
	assert.Equal(t, o.ID, updated.ID)
	assert.Equal(t, model.OrderCompleted, updated.Estado)
	assert.Equal(t, "Ana", updated.ClienteNombre)

	w = a.do(a.asAdmin(jsonRequest(http.MethodPost, "/admin/pedido/"+jsonID(o.ID)+"/estado", gin.H{"estado": "perdido"})))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(a.asAdmin(jsonRequest(http.MethodPost, "/admin/pedido/999/estado", gin.H{"estado": "cancelado"})))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Pedido no encontrado", decode(t, w).Msg)

	w = a.do(a.asAdmin(httptest.NewRequest(http.MethodPost, "/admin/pedidos/limpiar", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cantidad":1`)
}

func TestExcelDownloadAndBadUpload(t *testing.T) {
	a := newTestApp(t)
	seed(t, a, "Kit", 3, true)

	w := a.do(a.asAdmin(httptest.NewRequest(http.MethodGet, "/admin/descargar-excel", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "productos_")
	assert.NotZero(t, w.Body.Len())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("archivo", "lista.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("a,b"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/admin/subir-excel", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = a.do(a.asAdmin(req))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewArrivalsAdmin(t *testing.T) {
	a := newTestApp(t)

	w := a.do(a.asAdmin(httptest.NewRequest(http.MethodGet, "/admin/productos-nuevos/descargar-imagenes", nil)))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No hay productos nuevos con imágenes", decode(t, w).Msg)

	w = a.do(a.asAdmin(productRequest(t, map[string]string{"titulo": "Kit", "precio": "10"}, "foto.jpg")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(a.asAdmin(httptest.NewRequest(http.MethodGet, "/admin/productos-nuevos/descargar-imagenes", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "imagenes_productos_nuevos_")

	all, err := a.products.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	id := jsonID(all[0].ID)

	w = a.do(a.asAdmin(httptest.NewRequest(http.MethodPost, "/admin/productos-nuevos/"+id+"/quitar", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(a.asAdmin(httptest.NewRequest(http.MethodPost, "/admin/productos-nuevos/"+id+"/quitar", nil)))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "El producto no está en la lista de nuevos", decode(t, w).Msg)
}
