package types

import (
	"encoding/binary"
	"fmt"

	"collateral/utils"

	"google.golang.org/protobuf/encoding/protowire"
)

// 落库格式：4 字节 magic + 8 字节 murmur3 校验和 + protobuf wire 编码的正文
const recordHeaderLen = 12

var (
	vaultMagic     = [4]byte{'C', 'V', 'L', '1'}
	authorityMagic = [4]byte{'C', 'A', 'U', '1'}
	eventMagic     = [4]byte{'C', 'E', 'V', '1'}
)

func seal(magic [4]byte, body []byte) []byte {
	data := make([]byte, recordHeaderLen+len(body))
	copy(data[:4], magic[:])
	binary.BigEndian.PutUint64(data[4:12], utils.MurmurSum64(body))
	copy(data[recordHeaderLen:], body)
	return data
}

func unseal(magic [4]byte, data []byte) ([]byte, error) {
	if len(data) < recordHeaderLen {
		return nil, Wrap(CodeCorruptRecord, "record too short", fmt.Errorf("got %d bytes", len(data)))
	}
	if data[0] != magic[0] || data[1] != magic[1] || data[2] != magic[2] || data[3] != magic[3] {
		return nil, NewError(CodeCorruptRecord, fmt.Sprintf("unexpected record magic %q", data[:4]))
	}
	body := data[recordHeaderLen:]
	if binary.BigEndian.Uint64(data[4:12]) != utils.MurmurSum64(body) {
		return nil, NewError(CodeCorruptRecord, "record checksum mismatch")
	}
	return body, nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// walkFields 逐个字段回调，未知字段跳过
func walkFields(body []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return Wrap(CodeCorruptRecord, "bad field tag", protowire.ParseError(n))
		}
		body = body[n:]
		m, err := fn(num, typ, body)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, body)
		}
		if m < 0 {
			return Wrap(CodeCorruptRecord, fmt.Sprintf("bad value for field %d", num), protowire.ParseError(m))
		}
		body = body[m:]
	}
	return nil
}

func consumeUint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, NewError(CodeCorruptRecord, "expected varint field")
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, Wrap(CodeCorruptRecord, "bad varint", protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, NewError(CodeCorruptRecord, "expected bytes field")
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, Wrap(CodeCorruptRecord, "bad string", protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

// ============================================
// Vault
// ============================================

func EncodeVault(v *Vault) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("nil vault")
	}
	var b []byte
	b = appendString(b, 1, string(v.Owner))
	b = appendString(b, 2, v.CustodyAccount)
	b = appendUint(b, 3, v.TotalBalance)
	b = appendUint(b, 4, v.LockedBalance)
	b = appendUint(b, 5, v.TotalDeposited)
	b = appendUint(b, 6, v.TotalWithdrawn)
	b = appendUint(b, 7, uint64(v.Index))
	b = appendUint(b, 8, uint64(v.CreatedAt))
	return seal(vaultMagic, b), nil
}

func DecodeVault(data []byte) (*Vault, error) {
	body, err := unseal(vaultMagic, data)
	if err != nil {
		return nil, err
	}
	v := &Vault{}
	var owner string
	var index, createdAt uint64
	err = walkFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &owner)
		case 2:
			return consumeString(typ, b, &v.CustodyAccount)
		case 3:
			return consumeUint(typ, b, &v.TotalBalance)
		case 4:
			return consumeUint(typ, b, &v.LockedBalance)
		case 5:
			return consumeUint(typ, b, &v.TotalDeposited)
		case 6:
			return consumeUint(typ, b, &v.TotalWithdrawn)
		case 7:
			return consumeUint(typ, b, &index)
		case 8:
			return consumeUint(typ, b, &createdAt)
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	v.Owner = Identity(owner)
	v.Index = uint32(index)
	v.CreatedAt = int64(createdAt)
	if v.Owner == "" {
		return nil, NewError(CodeCorruptRecord, "vault record without owner")
	}
	if v.LockedBalance > v.TotalBalance {
		return nil, NewError(CodeCorruptRecord, "vault record with locked > total")
	}
	return v, nil
}

// ============================================
// Authority
// ============================================

func EncodeAuthority(a *Authority) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil authority")
	}
	var b []byte
	b = appendString(b, 1, string(a.Admin))
	for _, p := range a.Programs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, string(p))
	}
	b = appendUint(b, 3, uint64(a.CreatedAt))
	return seal(authorityMagic, b), nil
}

func DecodeAuthority(data []byte) (*Authority, error) {
	body, err := unseal(authorityMagic, data)
	if err != nil {
		return nil, err
	}
	a := &Authority{}
	var admin string
	var createdAt uint64
	err = walkFields(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &admin)
		case 2:
			var p string
			n, err := consumeString(typ, b, &p)
			if err == nil {
				a.Programs = append(a.Programs, Identity(p))
			}
			return n, err
		case 3:
			return consumeUint(typ, b, &createdAt)
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	a.Admin = Identity(admin)
	a.CreatedAt = int64(createdAt)
	if a.Admin == "" {
		return nil, NewError(CodeCorruptRecord, "authority record without admin")
	}
	return a, nil
}

// ============================================
// Event
// ============================================

func EncodeEvent(e *Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("nil event")
	}
	var b []byte
	b = appendUint(b, 1, e.Seq)
	b = appendString(b, 2, e.ID)
	b = appendString(b, 3, string(e.Type))
	b = appendString(b, 4, string(e.Caller))
	b = appendString(b, 5, string(e.Vault))
	b = appendString(b, 6, string(e.Counterparty))
	b = appendUint(b, 7, e.Amount)
	b = appendUint(b, 8, e.TotalBalance)
	b = appendUint(b, 9, e.LockedBalance)
	b = appendUint(b, 10, e.AvailableBalance)
	for _, p := range e.Programs {
		b = protowire.AppendTag(b, 11, protowire.BytesType)
		b = protowire.AppendString(b, string(p))
	}
	b = appendUint(b, 12, uint64(e.Timestamp))
	return seal(eventMagic, b), nil
}

func DecodeEvent(data []byte) (*Event, error) {
	body, err := unseal(eventMagic, data)
	if err != nil {
		return nil, err
	}
	e := &Event{}
	var typ, caller, vault, counterparty string
	var ts uint64
	err = walkFields(body, func(num protowire.Number, wt protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint(wt, b, &e.Seq)
		case 2:
			return consumeString(wt, b, &e.ID)
		case 3:
			return consumeString(wt, b, &typ)
		case 4:
			return consumeString(wt, b, &caller)
		case 5:
			return consumeString(wt, b, &vault)
		case 6:
			return consumeString(wt, b, &counterparty)
		case 7:
			return consumeUint(wt, b, &e.Amount)
		case 8:
			return consumeUint(wt, b, &e.TotalBalance)
		case 9:
			return consumeUint(wt, b, &e.LockedBalance)
		case 10:
			return consumeUint(wt, b, &e.AvailableBalance)
		case 11:
			var p string
			n, err := consumeString(wt, b, &p)
			if err == nil {
				e.Programs = append(e.Programs, Identity(p))
			}
			return n, err
		case 12:
			return consumeUint(wt, b, &ts)
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	e.Type = EventType(typ)
	e.Caller = Identity(caller)
	e.Vault = Identity(vault)
	e.Counterparty = Identity(counterparty)
	e.Timestamp = int64(ts)
	return e, nil
}
