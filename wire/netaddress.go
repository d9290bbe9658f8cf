// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
	"net"
	"time"
)

// maxNetAddressPayload is the max payload size for a net address: services
// 8 bytes + ip 16 bytes + port 2 bytes.
const maxNetAddressPayload = 26

// NetAddress defines information about a peer on the network including the
// services it supports and its address.
type NetAddress struct {
	// Bitfield which identifies the services supported by the address.
	Services ServiceFlag

	// IP address of the peer.
	IP net.IP

	// Port the peer is using. This is encoded in big endian on the wire
	// which differs from most everything else.
	Port uint16
}

// HasService reports whether the specified service is supported by the
// address.
func (na *NetAddress) HasService(service ServiceFlag) bool {
	return na.Services&service == service
}

// NewNetAddress returns a new NetAddress using the provided TCP address and
// supported services.
func NewNetAddress(addr *net.TCPAddr, services ServiceFlag) *NetAddress {
	return &NetAddress{
		Services: services,
		IP:       addr.IP,
		Port:     uint16(addr.Port),
	}
}

func readNetAddress(r io.Reader, na *NetAddress) error {
	services, err := ReadUint64(r)
	if err != nil {
		return err
	}
	na.Services = ServiceFlag(services)

	var ip [16]byte
	if _, err = io.ReadFull(r, ip[:]); err != nil {
		return err
	}
	na.IP = net.IP(ip[:])

	var port [2]byte
	if _, err = io.ReadFull(r, port[:]); err != nil {
		return err
	}
	na.Port = binary.BigEndian.Uint16(port[:])

	return nil
}

func writeNetAddress(w io.Writer, na *NetAddress) error {
	if err := WriteUint64(w, uint64(na.Services)); err != nil {
		return err
	}

	var ip [16]byte
	if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	if _, err := w.Write(ip[:]); err != nil {
		return err
	}

	var port [2]byte
	binary.BigEndian.PutUint16(port[:], na.Port)
	_, err := w.Write(port[:])
	return err
}

// timestamp truncated to seconds, used by address-carrying messages
func readTimestamp(r io.Reader) (time.Time, error) {
	ts, err := ReadUint64(r)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(int64(ts), 0), nil
}

func writeTimestamp(w io.Writer, t time.Time) error {
	return WriteUint64(w, uint64(t.Unix()))
}
