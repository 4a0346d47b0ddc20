// Package mocks provides gomock implementations of the session bridge ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the ports interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	api := mocks.NewMockIdentityAPI(ctrl)
//	api.EXPECT().Me(gomock.Any(), "abc").Return(domainauth.ResolvedUser{ID: "u1"}, nil)
package mocks

// Generate mock for IdentityAPI interface from internal/ports package.
// This creates MockIdentityAPI with methods for all IdentityAPI interface methods:
// Me, SendPhoneOTP, VerifyPhoneOTP, RequestOTP, VerifyOTP, UpdateProfile
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_api_mock.go github.com/sudheendra1210/Citycycle/internal/ports IdentityAPI

// Generate mock for IdentityProvider interface from internal/ports package.
// This creates MockIdentityProvider with methods for all IdentityProvider interface methods:
// Source, Loaded, Active, Token, Claims, SignOut, Subscribe
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_provider_mock.go github.com/sudheendra1210/Citycycle/internal/ports IdentityProvider
