package secretbox

import (
	"errors"

	"github.com/fxamacker/cbor/v2"
)

const envelopeVersion = 1

type envelope struct {
	Version    int    `cbor:"1,keyasint"`
	Salt       []byte `cbor:"2,keyasint"`
	Nonce      []byte `cbor:"3,keyasint"`
	Tag        []byte `cbor:"4,keyasint"`
	Ciphertext []byte `cbor:"5,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("secretbox: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 16,
	}.DecMode()
	if err != nil {
		panic("secretbox: CBOR decoder initialization failed: " + err.Error())
	}
}

var errMalformedEnvelope = errors.New("secretbox: malformed envelope")

func marshalEnvelope(env envelope) ([]byte, error) {
	return encMode.Marshal(env)
}

func unmarshalEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return envelope{}, err
	}
	if env.Version != envelopeVersion ||
		len(env.Salt) != saltSize ||
		len(env.Nonce) != nonceSize ||
		len(env.Tag) != tagSize {
		return envelope{}, errMalformedEnvelope
	}
	return env, nil
}
