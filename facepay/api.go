package facepay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/parsec/wechat-face-payment/facepay/models"
	"github.com/parsec/wechat-face-payment/internal/wxauth"
)

// StatusClientClosedRequest reports a call abandoned by the caller before it finished.
const StatusClientClosedRequest = 499

// ChannelName is the method channel the host application calls into.
const ChannelName = "wechat_face_payment"

// Method names of the channel.
const (
	MethodGetPlatformVersion = "getPlatformVersion"
	MethodInitFacePay        = "initFacePay"
	MethodInitScanCodePay    = "initScanCodePay"
	MethodReleaseWxPayFace   = "releaseWxPayFace"
	MethodGetWxpayAuth       = "getWxpayAuth"
	MethodGetFaceUserInfo    = "getFaceMchUserInfo"
)

// API exposes the Bridge as a method channel over HTTP:
// POST /channel/wechat_face_payment/{method} with the call arguments as a JSON object.
type API struct {
	bridge *Bridge
}

func NewAPI(bridge *Bridge) *API {
	return &API{
		bridge: bridge,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Post("/channel/"+ChannelName+"/{method}", a.invoke)
	r.Get("/sessions/{sessionID}/outcome", a.getOutcome)
	r.Get("/outcomes", a.listOutcomes)
}

// ChannelReply is the body of every channel response. Exactly one of
// Result, Error or NotImplemented is set.
type ChannelReply struct {
	Result         any           `json:"result,omitempty"`
	SessionID      string        `json:"session_id,omitempty"`
	Error          *ChannelError `json:"error,omitempty"`
	NotImplemented bool          `json:"not_implemented,omitempty"`
}

type ChannelError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (a *API) invoke(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")

	args := map[string]any{}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeReply(w, http.StatusBadRequest, ChannelReply{Error: &ChannelError{Code: "BAD_ARGUMENTS", Message: err.Error()}})
			return
		}
	}

	switch method {
	case MethodGetPlatformVersion:
		writeReply(w, http.StatusOK, ChannelReply{Result: a.bridge.GetPlatformVersion()})

	case MethodInitFacePay:
		session, err := a.bridge.StartFacePay(args)
		if err != nil {
			writeError(w, err)
			return
		}
		writeReply(w, http.StatusOK, ChannelReply{Result: AckInitFacePay, SessionID: session.ID})

	case MethodInitScanCodePay:
		info, err := a.bridge.InitScanCodePay(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeReply(w, http.StatusOK, ChannelReply{Result: info})

	case MethodReleaseWxPayFace:
		writeReply(w, http.StatusOK, ChannelReply{Result: a.bridge.ReleaseWxPayFace()})

	case MethodGetWxpayAuth:
		faceSID, err := stringArg(args, ArgFaceSID)
		if err != nil {
			writeError(w, err)
			return
		}
		info, err := a.bridge.RequestWxpayAuth(r.Context(), faceSID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeReply(w, http.StatusOK, ChannelReply{Result: info})

	case MethodGetFaceUserInfo:
		faceSID, err := stringArg(args, ArgFaceSID)
		if err != nil {
			writeError(w, err)
			return
		}
		infoType, err := stringArg(args, ArgInfoType)
		if err != nil {
			writeError(w, err)
			return
		}
		info, err := a.bridge.QueryFaceUser(r.Context(), faceSID, infoType)
		if err != nil {
			writeError(w, err)
			return
		}
		writeReply(w, http.StatusOK, ChannelReply{Result: info})

	default:
		writeReply(w, http.StatusNotImplemented, ChannelReply{NotImplemented: true})
	}
}

func (a *API) getOutcome(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	outcome, err := a.bridge.Outcome(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(outcome)
}

func (a *API) listOutcomes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = v
	}

	outcomes, err := a.bridge.ListOutcomes(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(outcomes)
}

func writeReply(w http.ResponseWriter, status int, reply ChannelReply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(reply)
}

// writeError maps bridge errors onto channel error codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		missing *models.MissingParameterError
		invalid *models.InvalidParameterError
		failure *models.SdkFailure
	)
	switch {
	case errors.As(err, &missing):
		writeReply(w, http.StatusBadRequest, ChannelReply{Error: &ChannelError{Code: "MISSING_PARAMETER", Message: err.Error(), Details: missing.Field}})
	case errors.As(err, &invalid):
		writeReply(w, http.StatusBadRequest, ChannelReply{Error: &ChannelError{Code: "INVALID_PARAMETER", Message: err.Error(), Details: invalid.Field}})
	case errors.As(err, &failure):
		writeReply(w, http.StatusBadGateway, ChannelReply{Error: &ChannelError{Code: failure.ChannelCode(), Message: failure.Message, Details: failure.Payload}})
	case errors.Is(err, ErrNoSession):
		writeReply(w, http.StatusConflict, ChannelReply{Error: &ChannelError{Code: "NO_SESSION", Message: err.Error()}})
	case errors.Is(err, wxauth.ErrNetworkFailure):
		writeReply(w, http.StatusBadGateway, ChannelReply{Error: &ChannelError{Code: "NETWORK_FAILURE", Message: err.Error()}})
	case errors.Is(err, wxauth.ErrMalformedResponse):
		writeReply(w, http.StatusBadGateway, ChannelReply{Error: &ChannelError{Code: "MALFORMED_RESPONSE", Message: err.Error()}})
	case errors.Is(err, context.DeadlineExceeded):
		writeReply(w, http.StatusGatewayTimeout, ChannelReply{Error: &ChannelError{Code: "TIMEOUT", Message: err.Error()}})
	case errors.Is(err, context.Canceled):
		writeReply(w, StatusClientClosedRequest, ChannelReply{Error: &ChannelError{Code: "CANCELLED", Message: err.Error()}})
	default:
		writeReply(w, http.StatusInternalServerError, ChannelReply{Error: &ChannelError{Code: "INTERNAL", Message: err.Error()}})
	}
}
