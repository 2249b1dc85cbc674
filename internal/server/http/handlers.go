package httpserver

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/and161185/food-advisor/internal/authctx"
	"github.com/and161185/food-advisor/internal/errs"
	"github.com/and161185/food-advisor/internal/model"
	"github.com/and161185/food-advisor/internal/service"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (r registerRequest) input() service.RegisterInput {
	return service.RegisterInput{Email: r.Email, Password: r.Password, FirstName: r.FirstName, LastName: r.LastName}
}

type authResponse struct {
	Token  string     `json:"token"`
	UserID int64      `json:"user_id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
}

func newAuthResponse(sess model.Session) authResponse {
	return authResponse{Token: sess.Token, UserID: sess.User.ID, Email: sess.User.Email, Role: sess.User.Role}
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

type usersPageResponse struct {
	Users    []model.PublicUser `json:"users"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

type createdResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(healthResponse{
		Status:    "ok",
		Service:   serviceName,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, msgBadBody)
	}
	sess, err := s.auth.Register(c.UserContext(), req.input())
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newAuthResponse(sess))
}

func (s *Server) login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, msgBadBody)
	}
	sess, err := s.auth.Login(c.UserContext(), req.Email, req.Password, c.IP())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(newAuthResponse(sess))
}

// callerID returns the authenticated identity id placed by requireAuth.
func callerID(c *fiber.Ctx) (int64, error) {
	claims, ok := authctx.ClaimsFromCtx(c.UserContext())
	if !ok {
		return 0, errs.ErrNoClaims
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, errs.ErrInvalidToken
	}
	return id, nil
}

func (s *Server) me(c *fiber.Ctx) error {
	id, err := callerID(c)
	if err != nil {
		return s.fail(c, err)
	}
	p, err := s.users.Profile(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(p)
}

func (s *Server) listUsers(c *fiber.Ctx) error {
	pg, err := s.users.List(c.UserContext(), c.QueryInt("page", 0), c.QueryInt("page_size", 0))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(usersPageResponse{Users: pg.Users, Total: pg.Total, Page: pg.Page, PageSize: pg.PageSize})
}

func (s *Server) createAdmin(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, msgBadBody)
	}
	id, err := s.users.CreateAdmin(c.UserContext(), req.input())
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(createdResponse{Message: "Admin user created successfully", UserID: id})
}

func (s *Server) setActive(active bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		target, err := c.ParamsInt("id")
		if err != nil || target <= 0 {
			return writeError(c, fiber.StatusBadRequest, msgBadUserID)
		}
		actor, err := callerID(c)
		if err != nil {
			return s.fail(c, err)
		}
		if err := s.users.SetActive(c.UserContext(), actor, int64(target), active); err != nil {
			return s.fail(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
