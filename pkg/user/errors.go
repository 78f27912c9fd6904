// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package user

import "errors"

var (
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user: not found")

	// ErrUserAlreadyExists is returned when creating a user whose username is taken.
	ErrUserAlreadyExists = errors.New("user: already exists")

	// ErrInvalidUsername is returned when a username is empty or malformed.
	ErrInvalidUsername = errors.New("user: invalid username")

	// ErrInvalidStatus is returned when an employment status is not recognized.
	ErrInvalidStatus = errors.New("user: invalid employment status")

	// ErrStorageClosed is returned when the store has been closed.
	ErrStorageClosed = errors.New("user: store closed")
)
