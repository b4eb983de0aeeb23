package chain

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.json
var abiFS embed.FS

// Parsed contract interfaces used by the service.
var (
	SessionManagerABI  = mustABI("SessionAccountManager")
	SessionAccountABI  = mustABI("SessionAccount")
	GroupABI           = mustABI("Group")
	BadgeCollectionABI = mustABI("BadgeCollection")
)

func mustABI(name string) abi.ABI {
	raw, err := abiFS.ReadFile("abi/" + name + ".json")
	if err != nil {
		panic(fmt.Sprintf("chain: read %s abi: %v", name, err))
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: parse %s abi: %v", name, err))
	}
	return parsed
}
