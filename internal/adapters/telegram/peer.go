package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/tg"
)

// peerResolverAPI представляет методы API для разрешения имени пользователя в peer.
type peerResolverAPI interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
}

// ResolvePeer разрешает цель импорта в InputPeer. Цель — @username чата или
// пользователя, либо "self" для Избранного.
func ResolvePeer(ctx context.Context, api peerResolverAPI, target string) (tg.InputPeerClass, error) {
	if target == "self" {
		return &tg.InputPeerSelf{}, nil
	}

	username := strings.TrimPrefix(target, "@")
	if username == "" {
		return nil, fmt.Errorf("пустое имя пользователя")
	}

	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, fmt.Errorf("разрешение %q: %w", username, err)
	}

	switch peer := resolved.Peer.(type) {
	case *tg.PeerUser:
		for _, userClass := range resolved.Users {
			if user, ok := userClass.(*tg.User); ok && user.ID == peer.UserID {
				return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, nil
			}
		}
		return nil, fmt.Errorf("пользователь %d не найден в ответе", peer.UserID)
	case *tg.PeerChannel:
		for _, chatClass := range resolved.Chats {
			if channel, ok := chatClass.(*tg.Channel); ok && channel.ID == peer.ChannelID {
				return &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}, nil
			}
		}
		return nil, fmt.Errorf("канал %d не найден в ответе", peer.ChannelID)
	default:
		return nil, fmt.Errorf("peer %T не поддерживается для импорта", resolved.Peer)
	}
}
