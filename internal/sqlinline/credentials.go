package sqlinline

const QSelectProviderCredential = `--sql 4d7a91c5-e8f2-4036-b5d9-28c613f0a784
select token from provider_credentials where provider = $1::text;
`

const QUpsertProviderCredential = `--sql c1e5b804-27d9-4f61-a3c8-95f0d4b2e617
insert into provider_credentials (provider, token, properties, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
