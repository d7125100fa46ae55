package router

import (
	"net/http"

	"github.com/senyabanana/forge-service/internal/handlers"
	"github.com/senyabanana/forge-service/internal/idempotency"
)

// WebhookPath принимает вызовы шлюза, которые идемпотентны сами по себе.
const WebhookPath = "/api/payments/webhook"

func InitRoutes(
	eventHandler *handlers.EventHandler,
	bidHandler *handlers.BidHandler,
	contractHandler *handlers.ContractHandler,
	paymentHandler *handlers.PaymentHandler,
	idem *idempotency.Middleware,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ping", handlers.PingHandler)

	mux.HandleFunc("POST /api/events", eventHandler.CreateEvent)
	mux.HandleFunc("GET /api/events/{eventId}", eventHandler.GetEvent)
	mux.HandleFunc("PUT /api/events/{eventId}/status", eventHandler.UpdateEventStatus)
	mux.HandleFunc("POST /api/events/{eventId}/close", eventHandler.CloseBidding)
	mux.HandleFunc("POST /api/events/{eventId}/final-bidding", eventHandler.OpenFinalBidding)
	mux.HandleFunc("POST /api/events/{eventId}/winner", eventHandler.DesignateWinner)
	mux.HandleFunc("POST /api/events/{eventId}/shortlist", bidHandler.Shortlist)

	mux.HandleFunc("GET /api/events/{eventId}/bids", bidHandler.ListBids)
	mux.HandleFunc("POST /api/events/{eventId}/bids/draft", bidHandler.SaveDraft)
	mux.HandleFunc("POST /api/events/{eventId}/bids", bidHandler.SubmitBid)
	mux.HandleFunc("GET /api/bids/{bidId}", bidHandler.GetBid)
	mux.HandleFunc("PUT /api/bids/{bidId}/revise", bidHandler.ReviseBid)
	mux.HandleFunc("GET /api/bids/{bidId}/feedback", bidHandler.GetFeedback)

	mux.HandleFunc("POST /api/contracts", contractHandler.GenerateContract)
	mux.HandleFunc("GET /api/contracts/{contractId}", contractHandler.GetContract)
	mux.HandleFunc("GET /api/contracts/{contractId}/document", contractHandler.GetDocument)
	mux.HandleFunc("POST /api/contracts/{contractId}/sign", contractHandler.SignContract)
	mux.HandleFunc("POST /api/contracts/{contractId}/payments", paymentHandler.CreateOrder)

	mux.HandleFunc("POST /api/payments/verify", paymentHandler.VerifyPayment)
	mux.HandleFunc("POST "+WebhookPath, paymentHandler.Webhook)
	mux.HandleFunc("POST /api/payments/{paymentId}/payout", paymentHandler.InitiatePayout)

	if idem == nil {
		return mux
	}
	return idem.Wrap(mux, WebhookPath)
}
