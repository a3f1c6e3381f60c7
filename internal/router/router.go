package router

import (
	"net/http"

	"offermarket/internal/controller"
)

func NewRouter(c *controller.Controller) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ping", c.Ping)
	mux.HandleFunc("GET /api/offers", c.GetOffers)
	mux.HandleFunc("POST /api/offers/new", c.NewOffer)
	mux.HandleFunc("GET /api/offers/{offerId}", c.GetOffer)
	mux.HandleFunc("PUT /api/offers/{offerId}/cancel", c.CancelOffer)
	mux.HandleFunc("PUT /api/offers/{offerId}/close", c.CloseOffer)
	mux.HandleFunc("GET /api/offers/{offerId}/responses", c.OfferResponses)
	mux.HandleFunc("POST /api/responses/new", c.NewResponse)
	mux.HandleFunc("GET /api/responses/my", c.MyResponses)
	mux.HandleFunc("PUT /api/responses/{responseId}/accept", c.AcceptResponse)
	mux.HandleFunc("PUT /api/responses/{responseId}/reject", c.RejectResponse)
	mux.HandleFunc("PUT /api/responses/{responseId}/withdraw", c.WithdrawResponse)
	mux.HandleFunc("GET /api/notifications", c.Notifications)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("page not found"))
	})

	cors := http.NewServeMux()
	cors.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Accept", "*/*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
		} else {
			mux.ServeHTTP(w, r)
		}
	})

	return cors
}
