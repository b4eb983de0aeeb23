package session

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/spliteth/spliteth/internal/account"
)

// RequestInput is the first step of the handshake: the client proves control
// of a session key for a phone number.
type RequestInput struct {
	SecondFactor   string
	SessionAddress string
	Signature      string
}

// RequestResult is returned to the client; the code itself travels by SMS.
type RequestResult struct {
	Provider       common.Address
	Salt           string
	SessionAddress string
	Signature      string
}

// StartInput completes the handshake with the code received out of band.
type StartInput struct {
	SecondFactor     string
	Salt             string
	SaltSignature    string
	SessionAddress   string
	SessionSignature string
}

// StartResult describes the provisioned account and the activation.
type StartResult struct {
	Account    account.Account
	Activation account.Activation
}

// Issued is the server-side record of the latest code for a second factor.
type Issued struct {
	Digest   common.Hash
	IssuedAt time.Time
}
