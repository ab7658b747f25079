package integrationtests

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/services/bidding/helpers"

	"github.com/stretchr/testify/require"
)

// createAuction lists an auction as alice and returns its ID
func createAuction(t *testing.T, env *TestEnv, name string, minBid float64) string {
	t.Helper()

	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions", env.TokenFor(t, alice), helpers.CreateAuctionRequest{
		Name:          name,
		Description:   "integration auction",
		MinBid:        minBid,
		DurationHours: 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, resp)

	data := dataMap(t, resp)
	require.Equal(t, "ACTIVE", data["status"])
	require.Equal(t, "alice", data["seller_id"])
	require.Equal(t, minBid, data["current_bid"])
	return data["auction_id"].(string)
}

func TestBiddingFlow(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *TestEnv) {
		auctionID := createAuction(t, env, "Vintage Lamp", 10)

		tests := []struct {
			name         string
			token        string
			request      any
			wantStatus   int
			wantReason   string
			wantBidderID string
		}{
			{
				name:         "Bob_Opens",
				token:        env.TokenFor(t, bob),
				request:      helpers.PlaceBidRequest{AuctionID: auctionID, Amount: 15},
				wantStatus:   http.StatusCreated,
				wantBidderID: "bob",
			},
			{
				name:       "Seller_Cannot_Bid",
				token:      env.TokenFor(t, alice),
				request:    helpers.PlaceBidRequest{AuctionID: auctionID, Amount: 50},
				wantStatus: http.StatusForbidden,
				wantReason: biddingerrors.ReasonSelfBid,
			},
			{
				name:       "Equal_Amount_Rejected",
				token:      env.TokenFor(t, carol),
				request:    helpers.PlaceBidRequest{AuctionID: auctionID, Amount: 15},
				wantStatus: http.StatusConflict,
				wantReason: biddingerrors.ReasonBidTooLow,
			},
			{
				name:         "Carol_Outbids",
				token:        env.TokenFor(t, carol),
				request:      helpers.PlaceBidRequest{AuctionID: auctionID, Amount: 20},
				wantStatus:   http.StatusCreated,
				wantBidderID: "carol",
			},
			{
				name:       "Unknown_Auction",
				token:      env.TokenFor(t, bob),
				request:    helpers.PlaceBidRequest{AuctionID: "missing", Amount: 100},
				wantStatus: http.StatusNotFound,
				wantReason: biddingerrors.ReasonNotFound,
			},
			{
				name:       "Invalid_JSON",
				token:      env.TokenFor(t, bob),
				request:    []byte("{auction_id: 'missing quotes', amount: 100}"),
				wantStatus: http.StatusBadRequest,
				wantReason: biddingerrors.ReasonValidation,
			},
			{
				name:       "No_Token",
				request:    helpers.PlaceBidRequest{AuctionID: auctionID, Amount: 100},
				wantStatus: http.StatusUnauthorized,
				wantReason: biddingerrors.ReasonUnauthorized,
			},
		}

		// cases depend on the previous bids, so they run in order
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/bids", tt.token, tt.request)
				require.Equal(t, tt.wantStatus, w.Code, resp)

				if tt.wantReason != "" {
					require.Equal(t, tt.wantReason, resp["reason"])
				}
				if tt.wantStatus == http.StatusCreated {
					data := dataMap(t, resp)
					require.Equal(t, auctionID, data["auction_id"])
					require.Equal(t, tt.wantBidderID, data["bidder_id"])
					require.NotEmpty(t, data["bid_id"])

					_, err := time.Parse(time.RFC3339, data["created_at"].(string))
					require.NoError(t, err)
				}
			})
		}

		resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, auctionURL(auctionID), "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		auction := dataMap(t, resp)
		require.Equal(t, 20.0, auction["current_bid"])
		require.Equal(t, "carol", auction["current_bidder_id"])
		require.Equal(t, "Carol", auction["current_bidder_name"])
		require.Len(t, auction["bid_ids"], 2)

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/bids/auction/"+auctionID, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		bids := dataList(t, resp)
		require.Len(t, bids, 2)
		require.Equal(t, "bob", bids[0].(map[string]any)["bidder_id"])
		require.Equal(t, "carol", bids[1].(map[string]any)["bidder_id"])

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/bids/user", env.TokenFor(t, bob), nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, dataList(t, resp), 1)
	})
}

func TestConcurrentBidsOverHTTP(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *TestEnv) {
		auctionID := createAuction(t, env, "Road Bike", 10)

		tokens := map[string]string{
			"bob":   env.TokenFor(t, bob),
			"carol": env.TokenFor(t, carol),
		}

		// provision both bidders before the race
		for _, token := range tokens {
			_, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/users/profile", token, nil)
			require.Equal(t, http.StatusOK, w.Code)
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
		)
		for i := 0; i < 20; i++ {
			token := tokens["bob"]
			if i%2 == 1 {
				token = tokens["carol"]
			}
			body, err := json.Marshal(helpers.PlaceBidRequest{AuctionID: auctionID, Amount: float64(11 + i)})
			require.NoError(t, err)

			wg.Add(1)
			go func() {
				defer wg.Done()
				w := ExecuteRequest(env.Router, http.MethodPost, "/bids", token, body)
				if w.Code == http.StatusCreated {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, auctionURL(auctionID), "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		auction := dataMap(t, resp)
		require.Equal(t, 30.0, auction["current_bid"])
		require.Len(t, auction["bid_ids"], accepted)

		resp, _ = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/bids/auction/"+auctionID, "", nil)
		last := 0.0
		for _, raw := range dataList(t, resp) {
			amount := raw.(map[string]any)["amount"].(float64)
			require.Greater(t, amount, last, "accepted bids must strictly increase")
			last = amount
		}
	})
}

func TestSettlementFlow(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *TestEnv) {
		soldID := createAuction(t, env, "Vintage Lamp", 10)
		unsoldID := createAuction(t, env, "Old Radio", 40)

		bobToken := env.TokenFor(t, bob)
		aliceToken := env.TokenFor(t, alice)

		_, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/bids", bobToken, helpers.PlaceBidRequest{AuctionID: soldID, Amount: 15})
		require.Equal(t, http.StatusCreated, w.Code)

		env.Sweep(time.Now().UTC().Add(2 * time.Hour))

		resp, _ := ExecuteRequestAndParse(t, env.Router, http.MethodGet, auctionURL(soldID), "", nil)
		require.Equal(t, "ENDED", dataMap(t, resp)["status"])
		resp, _ = ExecuteRequestAndParse(t, env.Router, http.MethodGet, auctionURL(unsoldID), "", nil)
		require.Equal(t, "ENDED", dataMap(t, resp)["status"])

		resp, _ = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions", "", nil)
		require.Empty(t, dataList(t, resp), "ended auctions are not listed as active")

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/messages", bobToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		bobInbox := dataList(t, resp)
		require.Len(t, bobInbox, 1)
		won := bobInbox[0].(map[string]any)
		require.Equal(t, "AUCTION_WON", won["type"])
		require.Equal(t, soldID, won["auction_id"])
		require.Equal(t, "Congratulations! You've won the auction for Vintage Lamp. Please contact the seller at: Alice", won["content"])

		resp, _ = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/messages/unread", aliceToken, nil)
		aliceInbox := dataList(t, resp)
		require.Len(t, aliceInbox, 1, "an auction without bids sends no messages")
		sold := aliceInbox[0].(map[string]any)
		require.Equal(t, "AUCTION_SOLD", sold["type"])
		require.Equal(t, "Your auction for Vintage Lamp has ended. The winning bidder is Bob. Please collect 25% of the final bid amount: $3.75", sold["content"])

		_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPut, "/messages/"+sold["message_id"].(string)+"/read", bobToken, nil)
		require.Equal(t, http.StatusForbidden, w.Code, "only the recipient may mark a message read")

		_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPut, "/messages/"+sold["message_id"].(string)+"/read", aliceToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp, _ = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/messages/unread", aliceToken, nil)
		require.Empty(t, dataList(t, resp))

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/bids", env.TokenFor(t, carol), helpers.PlaceBidRequest{AuctionID: soldID, Amount: 100})
		require.Equal(t, http.StatusConflict, w.Code)
		require.Equal(t, biddingerrors.ReasonAuctionNotActive, resp["reason"])

		// a second pass finds nothing left to settle
		env.Sweep(time.Now().UTC().Add(3 * time.Hour))
		resp, _ = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/messages", bobToken, nil)
		require.Len(t, dataList(t, resp), 1)
	})
}

func TestAdminFlow(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *TestEnv) {
		cancelID := createAuction(t, env, "Vintage Lamp", 10)
		openID := createAuction(t, env, "Road Bike", 100)

		bobToken := env.TokenFor(t, bob)
		adminToken := env.TokenFor(t, admin)

		resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodPut, auctionURL(cancelID)+"/cancel", bobToken, nil)
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Equal(t, biddingerrors.ReasonUnauthorized, resp["reason"])

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPut, auctionURL(cancelID)+"/cancel", adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "CANCELLED", dataMap(t, resp)["status"])

		_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPut, auctionURL(cancelID)+"/cancel", adminToken, nil)
		require.Equal(t, http.StatusConflict, w.Code, "cancelled auctions stay cancelled")

		_, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/users", bobToken, nil)
		require.Equal(t, http.StatusForbidden, w.Code)

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/users", adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, dataList(t, resp), 3, "alice, bob and admin were provisioned on first request")

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPut, "/users/bob/toggle-status", adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, false, dataMap(t, resp)["active"])

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/bids", bobToken, helpers.PlaceBidRequest{AuctionID: openID, Amount: 150})
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, biddingerrors.ReasonBidderNotFound, resp["reason"])

		_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPut, "/users/bob/toggle-status", adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/bids", bobToken, helpers.PlaceBidRequest{AuctionID: openID, Amount: 150})
		require.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestProfileAndMessaging(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *TestEnv) {
		bobToken := env.TokenFor(t, bob)
		aliceToken := env.TokenFor(t, alice)

		resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/users/profile", bobToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		profile := dataMap(t, resp)
		require.Equal(t, "Bob", profile["name"])
		require.Equal(t, true, profile["active"])

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPut, "/users/profile", bobToken, helpers.UpdateProfileRequest{Name: "Robert"})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "Robert", dataMap(t, resp)["name"])

		// make sure alice exists before messaging her
		_, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/users/profile", aliceToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/messages", bobToken, helpers.SendMessageRequest{
			RecipientID: "alice",
			Content:     "Is the lamp still available?",
		})
		require.Equal(t, http.StatusCreated, w.Code, resp)
		require.Equal(t, "bob", dataMap(t, resp)["sender_id"])

		_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/messages", bobToken, helpers.SendMessageRequest{
			RecipientID: "nobody",
			Content:     "hello?",
		})
		require.Equal(t, http.StatusNotFound, w.Code)

		resp, _ = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/messages/unread", aliceToken, nil)
		inbox := dataList(t, resp)
		require.Len(t, inbox, 1)
		require.Equal(t, "Is the lamp still available?", inbox[0].(map[string]any)["content"])
	})
}

func TestPublicEndpoints(t *testing.T) {
	forEachStore(t, func(t *testing.T, env *TestEnv) {
		_, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/healthz", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, dataList(t, resp))

		resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, auctionURL("missing"), "", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Equal(t, biddingerrors.ReasonNotFound, resp["reason"])

		_, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/messages", "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
