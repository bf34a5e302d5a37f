package api

import (
	"net/http"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/conversation"
	"maitred/internal/feedback"

	"github.com/gin-gonic/gin"
)

// TurnRequest is the body of a turn call
type TurnRequest struct {
	Customer conversation.Customer `json:"customer"`
	Event    conversation.Event    `json:"event"`
}

// PaymentOutcomeRequest is posted by the payment provider
type PaymentOutcomeRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Reference      string `json:"reference"`
	Success        bool   `json:"success"`
}

// FeedbackRequest carries an operator verdict
type FeedbackRequest struct {
	Verdict string `json:"verdict" binding:"required"`
}

func (s *Server) handleTurn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// an unreadable event still gets the clarifying reply for the conversation's step
		_ = c.Error(err)
		req.Event = conversation.Event{}
	}

	s.runTurn(c, conversation.Turn{
		TenantID:       c.Param("tenant"),
		ConversationID: c.Param("conversation"),
		Customer:       req.Customer,
		Event:          req.Event,
	})
}

func (s *Server) paymentOutcome(c *gin.Context) {
	var req PaymentOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.runTurn(c, conversation.Turn{
		TenantID:       c.Param("tenant"),
		ConversationID: req.ConversationID,
		Event: conversation.Event{
			Kind:    conversation.EventPayment,
			Payment: &conversation.PaymentOutcome{Success: req.Success, Reference: req.Reference},
		},
	})
}

// runTurn answers with the turn result; a failed turn still carries its apology reply
func (s *Server) runTurn(c *gin.Context, in conversation.Turn) {
	result, err := s.turns.HandleTurn(c.Request.Context(), in)
	if err != nil {
		status := statusFor(err)
		body := gin.H{"error": err.Error()}
		if status == http.StatusInternalServerError {
			_ = c.Error(err)
			body["error"] = "internal error"
		}
		if result != nil {
			body["replies"] = result.Replies
			body["state"] = result.State
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) resetConversation(c *gin.Context) {
	if err := s.turns.Reset(c.Request.Context(), c.Param("tenant"), c.Param("conversation")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": conversation.StateIdle})
}

func (s *Server) submitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	verdict, err := feedback.ParseVerdict(req.Verdict)
	if err != nil {
		s.fail(c, err)
		return
	}

	stored, err := s.feedback.SubmitFeedback(c.Request.Context(), c.Param("tenant"), c.Param("id"), verdict)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intent_id": c.Param("id"), "feedback": stored})
}

func (s *Server) accuracy(c *gin.Context) {
	window := feedback.DefaultWindow
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			s.fail(c, apperr.New(apperr.KindValidation, "window must be a positive duration like 168h", err))
			return
		}
		window = d
	}

	acc, err := s.feedback.Accuracy(c.Request.Context(), c.Param("tenant"), window)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}
