package grpcserver

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/food-advisor/internal/access"
	"github.com/and161185/food-advisor/internal/errs"
	"github.com/and161185/food-advisor/internal/limiter"
	"github.com/and161185/food-advisor/internal/model"
	"github.com/and161185/food-advisor/internal/service"
	"github.com/and161185/food-advisor/internal/token"
)

type fakeAuth struct {
	sess model.Session
	err  error

	gotEmail, gotPassword, gotIP string
}

func (f *fakeAuth) Login(_ context.Context, email, password, ip string) (model.Session, error) {
	f.gotEmail, f.gotPassword, f.gotIP = email, password, ip
	return f.sess, f.err
}
func (f *fakeAuth) Register(context.Context, service.RegisterInput) (model.Session, error) {
	return f.sess, f.err
}

type fakeUserService struct {
	page model.Page
	err  error

	gotPage, gotSize int
}

func (f *fakeUserService) Profile(context.Context, int64) (model.PublicUser, error) {
	return model.PublicUser{}, errs.ErrNotFound
}
func (f *fakeUserService) List(_ context.Context, page, size int) (model.Page, error) {
	f.gotPage, f.gotSize = page, size
	return f.page, f.err
}
func (f *fakeUserService) CreateAdmin(context.Context, service.RegisterInput) (int64, error) {
	return 0, nil
}
func (f *fakeUserService) SetActive(context.Context, int64, int64, bool) error { return nil }
func (f *fakeUserService) EnsureAdmin(context.Context, string, string) (bool, error) {
	return false, nil
}

const bufSize = 1 << 20

type harness struct {
	client *IdentityClient
	health healthpb.HealthClient
	codec  *token.Codec
	auth   *fakeAuth
	users  *fakeUserService
}

func startBufGRPC(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	codec, err := token.NewCodec([]byte("grpc-test-secret"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	gate := access.NewGate(codec, log)
	h := &harness{codec: codec, auth: &fakeAuth{}, users: &fakeUserService{}}

	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		LoggingUnary(log),
		AuthUnary(gate, log, PublicMethods),
		AdminUnary(gate, log, AdminMethods),
	))
	RegisterIdentityServer(gs, New(h.auth, h.users, log))
	healthpb.RegisterHealthServer(gs, health.NewServer())
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })

	h.client = NewIdentityClient(cc)
	h.health = healthpb.NewHealthClient(cc)
	return h
}

func (h *harness) bearer(t *testing.T, u model.User) context.Context {
	t.Helper()
	raw, _, err := h.codec.Mint(u, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+raw)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if st, ok := status.FromError(err); !ok || st.Code() != code {
		t.Fatalf("want %v, got %v", code, err)
	}
}

var (
	regular = model.User{ID: 5, Email: "user@example.com", Role: model.RoleRegular}
	admin   = model.User{ID: 1, Email: "admin@example.com", Role: model.RoleAdministrator}
)

func TestGRPC_Login(t *testing.T) {
	h := startBufGRPC(t)
	h.auth.sess = model.Session{Token: "tok", User: model.PublicUser{ID: 5, Email: "user@example.com", Role: model.RoleRegular}}

	out, err := h.client.Login(context.Background(), mustStruct(t, map[string]any{"email": "user@example.com", "password": "pw"}))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	f := out.GetFields()
	if f["token"].GetStringValue() != "tok" || f["user_id"].GetNumberValue() != 5 || f["role"].GetStringValue() != "Regular" {
		t.Fatalf("bad response: %v", out)
	}
	if h.auth.gotEmail != "user@example.com" || h.auth.gotPassword != "pw" || h.auth.gotIP == "" {
		t.Fatalf("bad call: %+v", h.auth)
	}
}

func TestGRPC_LoginErrors(t *testing.T) {
	h := startBufGRPC(t)
	req := mustStruct(t, map[string]any{"email": "x@example.com", "password": "pw"})

	cases := []struct {
		err  error
		code codes.Code
	}{
		{errs.ErrInvalidCredentials, codes.Unauthenticated},
		{errs.ErrAccountInactive, codes.PermissionDenied},
		{errs.ErrRateLimited, codes.ResourceExhausted},
		{errors.New("db down"), codes.Internal},
	}
	for _, c := range cases {
		h.auth.err = c.err
		_, err := h.client.Login(context.Background(), req)
		wantCode(t, err, c.code)
	}
}

func TestGRPC_WhoAmI(t *testing.T) {
	h := startBufGRPC(t)

	_, err := h.client.WhoAmI(context.Background(), &emptypb.Empty{})
	wantCode(t, err, codes.Unauthenticated)

	bad := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer a.b.c")
	_, err = h.client.WhoAmI(bad, &emptypb.Empty{})
	wantCode(t, err, codes.Unauthenticated)

	out, err := h.client.WhoAmI(h.bearer(t, regular), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	f := out.GetFields()
	if f["sub"].GetStringValue() != "5" || f["role"].GetStringValue() != "Regular" || f["exp"].GetNumberValue() == 0 {
		t.Fatalf("bad claims: %v", out)
	}
}

func TestGRPC_ListUsers_RoleGate(t *testing.T) {
	h := startBufGRPC(t)
	req := mustStruct(t, map[string]any{"page": 2, "page_size": 10})

	_, err := h.client.ListUsers(context.Background(), req)
	wantCode(t, err, codes.Unauthenticated)

	_, err = h.client.ListUsers(h.bearer(t, regular), req)
	wantCode(t, err, codes.PermissionDenied)
	if h.users.gotPage != 0 {
		t.Fatalf("handler ran for non-admin")
	}

	h.users.page = model.Page{
		Users:    []model.PublicUser{{ID: 11, Email: "a@example.com", Role: model.RoleRegular, Active: true}},
		Total:    11,
		Page:     2,
		PageSize: 10,
	}
	out, err := h.client.ListUsers(h.bearer(t, admin), req)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if h.users.gotPage != 2 || h.users.gotSize != 10 {
		t.Fatalf("paging not forwarded: %d/%d", h.users.gotPage, h.users.gotSize)
	}
	f := out.GetFields()
	if f["total"].GetNumberValue() != 11 || len(f["users"].GetListValue().GetValues()) != 1 {
		t.Fatalf("bad page: %v", out)
	}

	h.users.err = errs.ErrValidation
	_, err = h.client.ListUsers(h.bearer(t, admin), req)
	wantCode(t, err, codes.InvalidArgument)
}

func TestGRPC_HealthIsPublic(t *testing.T) {
	h := startBufGRPC(t)
	resp, err := h.health.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status %v", resp.GetStatus())
	}
}

type tcpAddr string

func (a tcpAddr) Network() string { return "tcp" }
func (a tcpAddr) String() string  { return string(a) }

func TestRemoteIP_DropsPort(t *testing.T) {
	t.Parallel()

	a := peer.NewContext(context.Background(), &peer.Peer{Addr: tcpAddr("203.0.113.7:50001")})
	b := peer.NewContext(context.Background(), &peer.Peer{Addr: tcpAddr("203.0.113.7:50002")})
	if remoteIP(a) != "203.0.113.7" || remoteIP(b) != "203.0.113.7" {
		t.Fatalf("remoteIP a=%q b=%q", remoteIP(a), remoteIP(b))
	}
	ka := limiter.NewKey("user@example.com", remoteIP(a))
	kb := limiter.NewKey("user@example.com", remoteIP(b))
	if !bytes.Equal(ka.IPHash, kb.IPHash) {
		t.Fatalf("connections from one address produced different limiter keys")
	}

	v6 := peer.NewContext(context.Background(), &peer.Peer{Addr: tcpAddr("[2001:db8::1]:443")})
	if got := remoteIP(v6); got != "2001:db8::1" {
		t.Fatalf("ipv6 remoteIP = %q", got)
	}
	raw := peer.NewContext(context.Background(), &peer.Peer{Addr: tcpAddr("bufconn")})
	if got := remoteIP(raw); got != "bufconn" {
		t.Fatalf("portless remoteIP = %q", got)
	}
	if got := remoteIP(context.Background()); got != "" {
		t.Fatalf("no peer remoteIP = %q", got)
	}
}
