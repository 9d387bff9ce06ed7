package paymentprovider

// Статусы авторизации, которые возвращает провайдер.
const (
	AuthorizationStatusSucceeded = "succeeded"
	AuthorizationStatusPending   = "pending"
)

// authorizeRequest — тело запроса на авторизацию платёжного метода под тарифный план.
type authorizeRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
	PlanID          string `json:"plan_id"`
}

// Authorization — результат успешной авторизации у провайдера.
type Authorization struct {
	ID     string `json:"id"`     // Идентификатор авторизации на стороне провайдера
	Status string `json:"status"` // succeeded — немедленное подтверждение, pending — отложенное
}

// errorResponse — тело ответа провайдера при отказе.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
