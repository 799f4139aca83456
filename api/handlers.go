package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"

	"github.com/vestflow-xyz/go-vestflow/engine"
	"github.com/vestflow-xyz/go-vestflow/vesting"
)

type countResponse struct {
	Count int `json:"count"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

type idResponse struct {
	ID string `json:"id"`
}

func (s *Server) getScheduleCount(c *fiber.Ctx) error {
	return c.JSON(countResponse{Count: s.eng.TotalCount()})
}

func (s *Server) getSchedule(c *fiber.Ctx) error {
	sched, err := s.eng.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(scheduleView(sched))
}

func (s *Server) getReleasable(c *fiber.Ctx) error {
	amount, err := s.eng.ComputeReleasable(c.Params("id"), s.now(c))
	if err != nil {
		return err
	}
	return c.JSON(amountResponse{Amount: amount.Dec()})
}

func (s *Server) getHolderCount(c *fiber.Ctx) error {
	return c.JSON(countResponse{Count: s.eng.CountForHolder(c.Params("address"))})
}

func (s *Server) getLastForHolder(c *fiber.Ctx) error {
	sched, err := s.eng.LastForHolder(c.Params("address"))
	if err != nil {
		return err
	}
	return c.JSON(scheduleView(sched))
}

func (s *Server) getScheduleID(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil || index < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid schedule index")
	}
	return c.JSON(idResponse{ID: s.eng.IDForHolderAndIndex(c.Params("address"), uint64(index))})
}

func (s *Server) getWithdrawable(c *fiber.Ctx) error {
	return c.JSON(amountResponse{Amount: s.eng.WithdrawableAmount().Dec()})
}

type createRequest struct {
	Beneficiary          string `json:"beneficiary"`
	Start                uint64 `json:"start"`
	Cliff                uint64 `json:"cliff"`
	Duration             uint64 `json:"duration"`
	SlicePeriod          uint64 `json:"slice_period"`
	Revocable            bool   `json:"revocable"`
	Amount               string `json:"amount"`
	FirstReleasePercent  uint64 `json:"first_release_percent"`
	SecondReleasePercent uint64 `json:"second_release_percent"`
	SecondReleaseTime    uint64 `json:"second_release_time"`
	FromLocked           bool   `json:"from_locked"`
}

func (s *Server) postCreate(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}

	id, err := s.eng.Create(s.caller(c), engine.CreateParams{
		Beneficiary:          req.Beneficiary,
		Start:                req.Start,
		Cliff:                req.Cliff,
		Duration:             req.Duration,
		SlicePeriod:          req.SlicePeriod,
		Revocable:            req.Revocable,
		Amount:               amount,
		FirstReleasePercent:  req.FirstReleasePercent,
		SecondReleasePercent: req.SecondReleasePercent,
		SecondReleaseTime:    req.SecondReleaseTime,
		FromLocked:           req.FromLocked,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(idResponse{ID: id})
}

type releaseRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) postRelease(c *fiber.Ctx) error {
	var req releaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}

	if err := s.eng.Release(s.caller(c), c.Params("id"), amount, s.now(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) postRevoke(c *fiber.Ctx) error {
	if err := s.eng.Revoke(s.caller(c), c.Params("id"), s.now(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type lockRequest struct {
	Start       uint64 `json:"start"`
	Cliff       uint64 `json:"cliff"`
	Duration    uint64 `json:"duration"`
	SlicePeriod uint64 `json:"slice_period"`
}

func (s *Server) postLock(c *fiber.Ctx) error {
	var req lockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.eng.LockWithdrawable(s.caller(c), req.Start, req.Cliff, req.Duration, req.SlicePeriod); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) postReleaseLocked(c *fiber.Ctx) error {
	var req releaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	if err := s.eng.ReleaseLocked(s.caller(c), amount); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type withdrawRequest struct {
	Amount string `json:"amount"`
	To     string `json:"to"`
}

func (s *Server) postWithdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	if err := s.eng.Withdraw(s.caller(c), amount, req.To); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// scheduleJSON is the wire form of a schedule, with amounts as decimal
// strings.
type scheduleJSON struct {
	ID                   string `json:"id"`
	Beneficiary          string `json:"beneficiary"`
	Start                uint64 `json:"start"`
	Cliff                uint64 `json:"cliff"`
	Duration             uint64 `json:"duration"`
	SlicePeriod          uint64 `json:"slice_period"`
	AmountTotal          string `json:"amount_total"`
	Released             string `json:"released"`
	Revocable            bool   `json:"revocable"`
	Revoked              bool   `json:"revoked"`
	FirstReleasePercent  uint64 `json:"first_release_percent"`
	SecondReleasePercent uint64 `json:"second_release_percent"`
	SecondReleaseTime    uint64 `json:"second_release_time"`
	Tier1Released        bool   `json:"tier1_released"`
	Tier2Released        bool   `json:"tier2_released"`
	FromLocked           bool   `json:"from_locked"`
	FrozenEntitlement    string `json:"frozen_entitlement,omitempty"`
}

func scheduleView(s *vesting.Schedule) scheduleJSON {
	out := scheduleJSON{
		ID:                   s.ID,
		Beneficiary:          s.Beneficiary,
		Start:                s.Start,
		Cliff:                s.Cliff,
		Duration:             s.Duration,
		SlicePeriod:          s.SlicePeriod,
		AmountTotal:          s.AmountTotal.Dec(),
		Released:             s.Released.Dec(),
		Revocable:            s.Revocable,
		Revoked:              s.Revoked,
		FirstReleasePercent:  s.FirstReleasePercent,
		SecondReleasePercent: s.SecondReleasePercent,
		SecondReleaseTime:    s.SecondReleaseTime,
		Tier1Released:        s.Tier1Released,
		Tier2Released:        s.Tier2Released,
		FromLocked:           s.FromLocked,
	}
	if s.FrozenEntitlement != nil {
		out.FrozenEntitlement = s.FrozenEntitlement.Dec()
	}
	return out
}

func parseAmount(dec string) (*uint256.Int, error) {
	if dec == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "amount is required")
	}
	amount, err := uint256.FromDecimal(dec)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid amount")
	}
	return amount, nil
}
