package encryption

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// SignatureLength is the size of an r || s || v secp256k1 signature.
const SignatureLength = crypto.SignatureLength

var (
	// ErrInvalidSignature signals a proof that cannot be recovered.
	ErrInvalidSignature = errors.New("invalid signature")

	// commitArgs is the ABI layout (string candidate, string salt) hashed into a commitment.
	commitArgs abi.Arguments

	// requestArgs is the ABI layout (string action, address actor, uint64 nonce, bytes payload)
	// a caller signs to authorise a state change.
	requestArgs abi.Arguments
)

func init() {
	stringTy := mustType("string")
	commitArgs = abi.Arguments{{Name: "candidate", Type: stringTy}, {Name: "salt", Type: stringTy}}
	requestArgs = abi.Arguments{
		{Name: "action", Type: stringTy},
		{Name: "actor", Type: mustType("address")},
		{Name: "nonce", Type: mustType("uint64")},
		{Name: "payload", Type: mustType("bytes")},
	}
}

func mustType(name string) abi.Type {
	ty, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

type CryptoService struct{}

func NewCryptoService() *CryptoService {
	return &CryptoService{}
}

// GenerateKeyPair generates a new secp256k1 key pair
func (cs *CryptoService) GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// Keccak256 computes Keccak-256 hash
func (cs *CryptoService) Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// ComputeHash derives the commitment for a (candidate, salt) pair. It is the
// keccak256 of the Solidity abi.encode(string, string) of both values, whose
// length prefixes keep ("ab", "c") and ("a", "bc") apart.
func (cs *CryptoService) ComputeHash(candidate, salt string) common.Hash {
	packed, err := commitArgs.Pack(candidate, salt)
	if err != nil {
		// Pack only fails on a Go type that does not match the ABI type.
		panic(fmt.Sprintf("pack commitment: %v", err))
	}
	return common.BytesToHash(cs.Keccak256(packed))
}

// ComputeHash is CryptoService.ComputeHash on a zero service.
func ComputeHash(candidate, salt string) common.Hash {
	return (&CryptoService{}).ComputeHash(candidate, salt)
}

// EligibilityMessage is the value the trusted signer attests for a voter:
// keccak256 of the 20 address bytes, i.e. solidity keccak256(abi.encodePacked(voter)).
func (cs *CryptoService) EligibilityMessage(voter common.Address) common.Hash {
	return common.BytesToHash(cs.Keccak256(voter.Bytes()))
}

// eligibilityDigest is the EIP-191 personal-message digest actually signed.
func (cs *CryptoService) eligibilityDigest(voter common.Address) []byte {
	message := cs.EligibilityMessage(voter)
	return accounts.TextHash(message.Bytes())
}

// SignEligibility produces the proof that voter may commit. The recovery id is
// shifted to 27/28 the way wallet personal_sign implementations emit it.
func (cs *CryptoService) SignEligibility(voter common.Address, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	return signDigest(cs.eligibilityDigest(voter), privateKey)
}

// RecoverEligibilitySigner returns the address that signed the eligibility
// proof for voter.
func (cs *CryptoService) RecoverEligibilitySigner(voter common.Address, proof []byte) (common.Address, error) {
	return recoverDigest(cs.eligibilityDigest(voter), proof)
}

// RequestMessage is the value an actor signs to authorise action. nonce is the
// number of changes the actor already had accepted, so a signed request is
// valid once.
func (cs *CryptoService) RequestMessage(action string, actor common.Address, nonce uint64, payload []byte) common.Hash {
	if payload == nil {
		payload = []byte{}
	}
	packed, err := requestArgs.Pack(action, actor, nonce, payload)
	if err != nil {
		panic(fmt.Sprintf("pack request: %v", err))
	}
	return common.BytesToHash(cs.Keccak256(packed))
}

// SignRequest authorises action on behalf of the owner of privateKey.
func (cs *CryptoService) SignRequest(action string, nonce uint64, payload []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	message := cs.RequestMessage(action, cs.AddressOf(privateKey), nonce, payload)
	return signDigest(accounts.TextHash(message.Bytes()), privateKey)
}

// RecoverRequestSigner returns the address that signed the authorisation of
// action for actor.
func (cs *CryptoService) RecoverRequestSigner(action string, actor common.Address, nonce uint64, payload, sig []byte) (common.Address, error) {
	message := cs.RequestMessage(action, actor, nonce, payload)
	return recoverDigest(accounts.TextHash(message.Bytes()), sig)
}

func signDigest(digest []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func recoverDigest(digest, proof []byte) (common.Address, error) {
	if len(proof) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSignature, len(proof), SignatureLength)
	}

	sig := make([]byte, SignatureLength)
	copy(sig, proof)
	if v := sig[crypto.RecoveryIDOffset]; v >= 27 {
		sig[crypto.RecoveryIDOffset] = v - 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: bad recovery id", ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// AddressOf returns the account address controlled by privateKey.
func (cs *CryptoService) AddressOf(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// ParsePrivateKey decodes a hex encoded secp256k1 private key, with or without 0x.
func ParsePrivateKey(keyStr string) (*ecdsa.PrivateKey, error) {
	keyStr = strings.TrimPrefix(strings.TrimSpace(keyStr), "0x")

	keyBytes, err := hex.DecodeString(keyStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key hex string: %w", err)
	}

	privateKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return privateKey, nil
}
