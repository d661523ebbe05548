package dto

type LoginDTO struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginResponseDTO struct {
	AccessToken string `json:"access_token"`
	OperatorID  int64  `json:"operator_id"`
	Name        string `json:"name"`
	ExpiresIn   int64  `json:"expires_in"`
}
