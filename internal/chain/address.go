package chain

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// NetworkParams maps the engine's BitcoinNetwork config value to the
// chaincfg.Params ExtractPkScriptAddrs needs to encode an address in the
// right human-readable form for each network.
func NetworkParams(network string) *chaincfg.Params {
	switch network {
	case "testnet":
		return &chaincfg.TestNet3Params
	case "signet":
		return &chaincfg.SigNetParams
	case "regtest":
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// ScriptToAddress decodes a scriptPubKey to its single canonical address
// string, or ok=false if the script is not a standard, single-address
// pattern (spec §7 "Output script not decodable to address" — the caller
// treats that output as ineligible, which degrades any move targeting it
// to a burn).
func ScriptToAddress(script []byte, params *chaincfg.Params) (string, bool) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil || len(addrs) != 1 {
		return "", false
	}
	return addrs[0].EncodeAddress(), true
}
