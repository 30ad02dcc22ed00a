package common

// RefreshTokenCookieName is the cookie carrying the refresh token.
const RefreshTokenCookieName = "jwt"

// AuthorizationHeaderName carries the access token on protected requests.
const AuthorizationHeaderName = "Authorization"
