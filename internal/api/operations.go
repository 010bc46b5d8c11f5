package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"metered-ledger-go/internal/operations"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// operand accepts a JSON number or a numeric string.
type operand struct {
	value float64
	set   bool
}

func (o *operand) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("operand %q is not a number", raw)
	}
	o.value = v
	o.set = true
	return nil
}

type operationRequest struct {
	UserId string `json:"user_id"`
	// Legacy clients send userId for random_string.
	UserIdAlt string  `json:"userId"`
	Num1      operand `json:"num1"`
	Num2      operand `json:"num2"`
}

func (r operationRequest) userId() string {
	if r.UserId != "" {
		return r.UserId
	}
	return r.UserIdAlt
}

// operands returns the first n supplied operands in order.
func (r operationRequest) operands(n int) ([]float64, error) {
	all := []operand{r.Num1, r.Num2}
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if !all[i].set {
			return nil, fmt.Errorf("num%d is required", i+1)
		}
		out = append(out, all[i].value)
	}
	return out, nil
}

func (s *LedgerService) ExecuteOperation(w http.ResponseWriter, r *http.Request) {
	opType := chi.URLParam(r, "type")
	def, ok := s.operations.Lookup(opType)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown operation type", fmt.Errorf("%q", opType))
		return
	}

	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	operands, err := req.operands(def.Arity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := operations.Run(r.Context(), s.ledger, def, req.userId(), operands)
	if err != nil {
		zap.L().Info("Operation rejected",
			zap.String("operation_type", opType),
			zap.String("user_id", req.userId()),
			zap.String("correlation_id", CorrelationIDFromContext(r.Context())),
			zap.Error(err))
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
