package sqlinline

const QInsertOutput = `--sql 84d2f6b0-1e5c-4a93-b7d8-f02e64a1c539
insert into outputs (id, generation_id, file_url, file_type, width, height)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::int, $6::int);
`

const QSelectOutputsForGeneration = `--sql 6e19c4d7-a2b8-40f5-93e6-d8517b0c2af4
select id, generation_id, file_url, file_type, width, height, is_starred, is_approved, created_at
from outputs
where generation_id = $1::uuid
order by created_at asc;
`

const QCountOutputsForGeneration = `--sql 0a5b83e2-7f1d-4c69-a0b5-e63d94c2187f
select count(*) from outputs where generation_id = $1::uuid;
`

// Ownership travels through the owning generation; outputs have no user
// column of their own.
const QSelectOutputForUser = `--sql d7301f58-6c2e-4ba4-97d0-52a8f41e6b9c
select o.id, o.generation_id, o.file_url, o.file_type, o.width, o.height, o.is_starred, o.is_approved, o.created_at
from outputs o
join generations g on g.id = o.generation_id
where o.id = $1::uuid and g.user_id = $2::uuid;
`

const QSelectOutputExists = `--sql 41c8a6f3-9e0b-4d72-85c1-b3f76d20e948
select id from outputs where id = $1::uuid;
`

const QUpdateOutputFlags = `--sql 5f2d90c6-b817-4e3a-96f4-07a2c5e8d1b3
update outputs o
set is_starred = coalesce($3::boolean, o.is_starred),
    is_approved = coalesce($4::boolean, o.is_approved)
from generations g
where o.id = $1::uuid and g.id = o.generation_id and g.user_id = $2::uuid
returning o.id, o.generation_id, o.file_url, o.file_type, o.width, o.height, o.is_starred, o.is_approved, o.created_at;
`
