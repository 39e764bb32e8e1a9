package api

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"commit-reveal-voting/models"
	"commit-reveal-voting/service"
)

func (s *Server) registerRoutes(r gin.IRouter) {
	api := r.Group("/api")

	api.GET("/status", s.handleGetStatus)
	api.GET("/hash", s.handleComputeHash)
	api.POST("/commit", s.handleCommit)
	api.POST("/reveal", s.handleReveal)
	api.POST("/phase/advance", s.handleAdvancePhase)
	api.GET("/votes/:candidate", s.handleGetVotes)
	api.GET("/results", s.handleGetResults)
	api.GET("/commitments/:voter", s.handleGetCommitment)
	api.GET("/whitelist/:voter", s.handleGetSignature)
	api.GET("/nonce/:address", s.handleGetNonce)
	api.GET("/ledger", s.handleGetJournal)
	api.GET("/ledger/validate", s.handleValidateJournal)
	api.GET("/metrics", s.handleGetMetrics)
}

func (s *Server) handleGetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.votingService.Status())
}

func (s *Server) handleComputeHash(c *gin.Context) {
	candidate := c.Query("candidate")
	salt := c.Query("salt")
	if candidate == "" || salt == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Please enter a vote and password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hash": s.votingService.ComputeHash(models.Candidate(candidate), salt),
	})
}

func (s *Server) handleCommit(c *gin.Context) {
	var req models.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Voter == (common.Address{}) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing voter"})
		return
	}

	if _, err := service.Wait(c.Request.Context(), s.queue.QueueCommit(c.Request.Context(), req)); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleReveal(c *gin.Context) {
	var req models.RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Voter == (common.Address{}) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing voter"})
		return
	}

	if _, err := service.Wait(c.Request.Context(), s.queue.QueueReveal(c.Request.Context(), req)); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleAdvancePhase(c *gin.Context) {
	var req models.AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Caller == (common.Address{}) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing caller"})
		return
	}

	res, err := service.Wait(c.Request.Context(), s.queue.QueueAdvance(c.Request.Context(), req))
	if err != nil {
		writeError(c, err)
		return
	}

	phase := res.Value.(models.Phase)
	c.JSON(http.StatusOK, gin.H{
		"phase":      phase,
		"phase_name": phase.String(),
	})
}

func (s *Server) handleGetVotes(c *gin.Context) {
	candidate := models.Candidate(c.Param("candidate"))

	votes, err := s.votingService.GetVotes(candidate)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"candidate": candidate,
		"votes":     votes,
	})
}

func (s *Server) handleGetResults(c *gin.Context) {
	results, err := s.votingService.Results()
	if err != nil {
		writeError(c, err)
		return
	}

	var total uint64
	for _, n := range results {
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"results":     results,
		"total_votes": total,
	})
}

func (s *Server) handleGetCommitment(c *gin.Context) {
	voter, err := service.ParseAddress(c.Param("voter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"voter":      voter,
		"commitment": s.votingService.VoteByUser(voter),
		"committed":  s.votingService.Engine().HasCommitment(voter),
	})
}

func (s *Server) handleGetSignature(c *gin.Context) {
	voter, err := service.ParseAddress(c.Param("voter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	sig, ok := s.votingService.LookupSignature(voter)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Address is not whitelisted"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"voter":     voter,
		"signature": hexutil.Bytes(sig),
	})
}

// handleGetNonce returns the nonce the next signed request of address must use.
func (s *Server) handleGetNonce(c *gin.Context) {
	address, err := service.ParseAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": address,
		"nonce":   s.votingService.Nonce(address),
	})
}

func (s *Server) handleGetJournal(c *gin.Context) {
	entries, err := s.votingService.Journal(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"length":  len(entries),
	})
}

func (s *Server) handleValidateJournal(c *gin.Context) {
	if err := s.votingService.ValidateJournal(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"is_valid": false,
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_valid": true})
}

func (s *Server) handleGetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.votingService.Metrics())
}

// writeError maps engine errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrNotAuthorized), errors.Is(err, service.ErrNotWhitelisted):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrWrongPhase),
		errors.Is(err, service.ErrResultsNotReady),
		errors.Is(err, service.ErrPhaseAlreadyTerminal):
		status = http.StatusConflict
	case errors.Is(err, service.ErrCommitMismatch):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrQueueStopped):
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, ErrorResponse{
		Error: err.Error(),
		Code:  service.ErrorCode(err),
	})
}
